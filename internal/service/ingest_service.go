package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/favmirror/internal/config"
	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/downloader"
	"github.com/iconidentify/favmirror/internal/media"
	"github.com/iconidentify/favmirror/internal/repository"
	"github.com/iconidentify/favmirror/internal/storage"
	"github.com/iconidentify/favmirror/pkg/booru"
)

// IngestService runs the per-post pipeline: fetch metadata, fetch content,
// classify, transcode, persist, place files.
type IngestService struct {
	repo       repository.PostRepository
	source     booru.Client
	downloader downloader.Downloader
	transcoder *media.Transcoder
	cfg        config.StorageConfig
	logger     *slog.Logger

	// place moves an artifact into final storage.
	place func(g *media.Guard, src, dst string) error
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	repo repository.PostRepository,
	source booru.Client,
	dl downloader.Downloader,
	transcoder *media.Transcoder,
	cfg config.StorageConfig,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		repo:       repo,
		source:     source,
		downloader: dl,
		transcoder: transcoder,
		cfg:        cfg,
		logger:     logger,
		place:      (*media.Guard).Place,
	}
}

// UploadRequest is a manually uploaded post.
type UploadRequest struct {
	ExternalID domain.ExternalID
	Content    io.Reader
	Tags       []domain.Tag
}

// Process runs the full pipeline for a post that is already in the store.
// Every failure is returned as a *domain.PostError naming the failed step.
func (s *IngestService) Process(ctx context.Context, id domain.ExternalID) error {
	logger := s.logger.With("post_id", id)
	start := time.Now()

	remote, err := s.source.FetchPost(ctx, id)
	if err != nil {
		return domain.NewPostError(id, "fetch metadata", err)
	}

	internal, err := s.repo.InternalID(ctx, id)
	if err != nil {
		return domain.NewPostError(id, "resolve post", err)
	}
	logger = logger.With("internal_id", internal)

	g := media.NewGuard(s.cfg.TempPath, logger)
	defer g.Release()

	src, err := s.fetchContent(ctx, g, remote.FileURL)
	if err != nil {
		return domain.NewPostError(id, "download", err)
	}

	tags := make([]domain.Tag, 0, len(remote.Tags))
	for _, name := range remote.Tags {
		tags = append(tags, domain.Tag{Name: name})
	}

	d, err := s.finish(ctx, g, id, src, func(info domain.MediaInfo) (*domain.Download, error) {
		return s.repo.CommitDownload(ctx, id, info, tags)
	})
	if err != nil {
		return err
	}

	logger.Info("post ingested",
		"file", d.FileName,
		"mime", d.MIME,
		"original", d.Original,
		"tags", len(tags),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Upload ingests manually uploaded content. The post is created if it is
// not known yet.
func (s *IngestService) Upload(ctx context.Context, req UploadRequest) (*domain.Download, error) {
	if req.ExternalID <= 0 {
		return nil, domain.ErrInvalidPostID
	}
	if req.Content == nil {
		return nil, domain.NewPostError(req.ExternalID, "upload", domain.ErrEmptyContent)
	}

	downloaded, err := s.repo.DownloadedPosts(ctx, []domain.ExternalID{req.ExternalID})
	if err != nil {
		return nil, domain.NewPostError(req.ExternalID, "check existing", err)
	}
	if len(downloaded) > 0 {
		return nil, domain.NewPostError(req.ExternalID, "upload", domain.ErrAlreadyDownloaded)
	}

	logger := s.logger.With("post_id", req.ExternalID)
	g := media.NewGuard(s.cfg.TempPath, logger)
	defer g.Release()

	src, err := s.spool(g, req.Content)
	if err != nil {
		return nil, domain.NewPostError(req.ExternalID, "upload", err)
	}

	d, err := s.finish(ctx, g, req.ExternalID, src, func(info domain.MediaInfo) (*domain.Download, error) {
		return s.repo.CommitUpload(ctx, req.ExternalID, info, req.Tags)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("upload ingested",
		"file", d.FileName,
		"mime", d.MIME,
		"original", d.Original,
		"tags", len(req.Tags),
	)
	return d, nil
}

// finish classifies and transcodes src, commits the record through commit,
// places the artifacts and disarms the guard. The record is committed
// before placement, so a placement failure leaves a record without a file;
// AuditDownloads reports such records.
func (s *IngestService) finish(
	ctx context.Context,
	g *media.Guard,
	id domain.ExternalID,
	src string,
	commit func(domain.MediaInfo) (*domain.Download, error),
) (*domain.Download, error) {
	class, err := media.ClassifyFile(src)
	if err != nil {
		return nil, domain.NewPostError(id, "classify", err)
	}

	artifacts, err := s.transcoder.Transcode(ctx, g, src, class)
	if err != nil {
		return nil, domain.NewPostError(id, "transcode", err)
	}

	d, err := commit(artifacts.Media)
	if err != nil {
		return nil, domain.NewPostError(id, "persist", err)
	}

	if err := s.place(g, artifacts.Primary, domain.FilePath(s.cfg.BasePath, d.FileName)); err != nil {
		return nil, domain.NewPostError(id, "place", err)
	}
	if artifacts.Thumbnail != "" {
		if err := s.place(g, artifacts.Thumbnail, domain.ThumbnailPath(s.cfg.BasePath, d.FileName)); err != nil {
			return nil, domain.NewPostError(id, "place thumbnail", err)
		}
	}

	g.Commit()
	return d, nil
}

// fetchContent streams url into a guarded scratch file.
func (s *IngestService) fetchContent(ctx context.Context, g *media.Guard, url string) (string, error) {
	if err := storage.CheckFree(s.cfg.TempPath, s.cfg.MinFreeSpace); err != nil {
		return "", err
	}

	body, size, err := s.downloader.Download(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if s.cfg.MaxFileSize > 0 && size > s.cfg.MaxFileSize {
		return "", fmt.Errorf("%w: %s", domain.ErrFileTooLarge, humanize.IBytes(uint64(size)))
	}

	return s.spool(g, body)
}

// spool copies r into a new scratch file, enforcing the maximum file size.
func (s *IngestService) spool(g *media.Guard, r io.Reader) (string, error) {
	f, err := g.Create("dl-", "")
	if err != nil {
		return "", err
	}
	defer f.Close()

	limited := r
	if s.cfg.MaxFileSize > 0 {
		limited = io.LimitReader(r, s.cfg.MaxFileSize+1)
	}

	written, err := io.Copy(f, limited)
	if err != nil {
		return "", fmt.Errorf("write content: %w", err)
	}
	if s.cfg.MaxFileSize > 0 && written > s.cfg.MaxFileSize {
		return "", fmt.Errorf("%w: more than %s", domain.ErrFileTooLarge, humanize.IBytes(uint64(s.cfg.MaxFileSize)))
	}
	if written == 0 {
		return "", domain.ErrEmptyContent
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync content: %w", err)
	}

	return f.Name(), nil
}

// AuditDownloads logs every download record whose files are missing and
// returns how many were found. Nothing is deleted.
func (s *IngestService) AuditDownloads(ctx context.Context) (int, error) {
	downloads, err := s.repo.ListDownloads(ctx)
	if err != nil {
		return 0, fmt.Errorf("list downloads: %w", err)
	}

	missing := 0
	for _, d := range downloads {
		paths := []string{domain.FilePath(s.cfg.BasePath, d.FileName)}
		if d.IsVideo() {
			paths = append(paths, domain.ThumbnailPath(s.cfg.BasePath, d.FileName))
		}
		for _, p := range paths {
			if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
				missing++
				s.logger.Warn("download record without file",
					"post_id", d.ExternalID,
					"path", p,
				)
				break
			}
		}
	}
	return missing, nil
}
