package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/repository"
)

// Queue receives post ids for ingestion.
type Queue interface {
	Push(ids ...domain.ExternalID) error
	Len() int
}

// IntakeService deduplicates externally observed post ids against the store
// and enqueues only the new ones.
type IntakeService struct {
	repo   repository.PostRepository
	queue  Queue
	logger *slog.Logger
}

// NewIntakeService creates a new intake service.
func NewIntakeService(repo repository.PostRepository, queue Queue, logger *slog.Logger) *IntakeService {
	return &IntakeService{
		repo:   repo,
		queue:  queue,
		logger: logger,
	}
}

// Stats summarizes the store and queue.
type Stats struct {
	Posts     int64 `json:"posts"`
	Downloads int64 `json:"downloads"`
	Pending   int64 `json:"pending"`
	Queued    int   `json:"queued"`
}

// Submit records unknown ids and enqueues them. It returns exactly the ids
// that were new; known ids are skipped silently.
func (s *IntakeService) Submit(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error) {
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: %d", domain.ErrInvalidPostID, id)
		}
	}

	inserted, err := s.repo.InsertPosts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("insert posts: %w", err)
	}
	if len(inserted) == 0 {
		return inserted, nil
	}

	// The rows are durable; ids that miss the queue are requeued on the next
	// start by RequeuePending.
	if err := s.queue.Push(inserted...); err != nil {
		s.logger.Warn("new posts not enqueued", "count", len(inserted), "error", err)
	}

	s.logger.Info("posts submitted",
		"received", len(ids),
		"new", len(inserted),
	)
	return inserted, nil
}

// Pending returns posts without a download record, newest first.
func (s *IntakeService) Pending(ctx context.Context) ([]domain.ExternalID, error) {
	return s.repo.PendingPosts(ctx)
}

// RequeuePending enqueues every pending post. It is the backlog scan run
// once at startup.
func (s *IntakeService) RequeuePending(ctx context.Context) (int, error) {
	pending, err := s.repo.PendingPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("query pending posts: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := s.queue.Push(pending...); err != nil {
		return 0, fmt.Errorf("enqueue pending posts: %w", err)
	}

	s.logger.Info("pending posts requeued", "count", len(pending))
	return len(pending), nil
}

// Exists returns the subset of ids that are already downloaded.
func (s *IntakeService) Exists(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error) {
	return s.repo.DownloadedPosts(ctx, ids)
}

// Search parses a raw query and returns matching posts, newest first.
func (s *IntakeService) Search(ctx context.Context, raw string) ([]domain.ExternalID, error) {
	return s.repo.Search(ctx, domain.ParseSearch(raw))
}

// Autocomplete suggests tags containing term.
func (s *IntakeService) Autocomplete(ctx context.Context, term string) ([]domain.TagUsage, error) {
	return s.repo.Autocomplete(ctx, term)
}

// PostCount returns the number of known posts.
func (s *IntakeService) PostCount(ctx context.Context) (int64, error) {
	return s.repo.PostCount(ctx)
}

// Stats reports store and queue counters.
func (s *IntakeService) Stats(ctx context.Context) (*Stats, error) {
	posts, err := s.repo.PostCount(ctx)
	if err != nil {
		return nil, err
	}
	downloads, err := s.repo.DownloadCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Posts:     posts,
		Downloads: downloads,
		Pending:   posts - downloads,
		Queued:    s.queue.Len(),
	}, nil
}
