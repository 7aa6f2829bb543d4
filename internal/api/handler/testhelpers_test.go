package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockIntake is a test implementation of Intake, Searcher and StatsSource.
type mockIntake struct {
	mu sync.Mutex

	known      map[domain.ExternalID]bool
	downloaded map[domain.ExternalID]bool
	pending    []domain.ExternalID
	search     map[string][]domain.ExternalID
	tags       []domain.TagUsage
	stats      *service.Stats

	err      error
	statsErr error

	lastSearch string
}

func newMockIntake() *mockIntake {
	return &mockIntake{
		known:      make(map[domain.ExternalID]bool),
		downloaded: make(map[domain.ExternalID]bool),
		search:     make(map[string][]domain.ExternalID),
		stats:      &service.Stats{},
	}
}

func (m *mockIntake) Submit(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if id <= 0 {
			return nil, domain.ErrInvalidPostID
		}
	}
	var inserted []domain.ExternalID
	for _, id := range ids {
		if !m.known[id] {
			m.known[id] = true
			inserted = append(inserted, id)
		}
	}
	return inserted, nil
}

func (m *mockIntake) Pending(ctx context.Context) ([]domain.ExternalID, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pending, nil
}

func (m *mockIntake) Exists(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ExternalID
	for _, id := range ids {
		if m.downloaded[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockIntake) PostCount(ctx context.Context) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.known)), nil
}

func (m *mockIntake) Search(ctx context.Context, raw string) ([]domain.ExternalID, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastSearch = raw
	return m.search[raw], nil
}

func (m *mockIntake) Autocomplete(ctx context.Context, term string) ([]domain.TagUsage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tags, nil
}

func (m *mockIntake) Stats(ctx context.Context) (*service.Stats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

// mockUploader records the last upload request.
type mockUploader struct {
	err     error
	req     service.UploadRequest
	content []byte
}

func (m *mockUploader) Upload(ctx context.Context, req service.UploadRequest) (*domain.Download, error) {
	m.req = req
	b, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, err
	}
	m.content = b
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Download{
		PostID:     1,
		ExternalID: req.ExternalID,
		FileName:   domain.FileName(1, req.ExternalID, "png"),
		MIME:       "image/png",
		Extension:  "png",
		Original:   true,
	}, nil
}

// mockPinger reports a fixed store health.
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}
