package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/repository"
)

// GalleryService pages through the mirrored posts for browsing.
type GalleryService struct {
	repo     repository.PostRepository
	basePath string
}

// NewGalleryService creates a new gallery service.
func NewGalleryService(repo repository.PostRepository, basePath string) *GalleryService {
	return &GalleryService{
		repo:     repo,
		basePath: basePath,
	}
}

// GalleryPage is one page of downloaded posts.
type GalleryPage struct {
	Term       string
	Posts      []*domain.Download
	Matches    int64
	Pagination domain.Pagination
}

// Page returns page number page of downloaded posts, newest first. A
// non-empty term restricts the page to posts matching the tag search.
func (s *GalleryService) Page(ctx context.Context, term string, page int) (*GalleryPage, error) {
	term = strings.TrimSpace(term)
	if term != "" {
		return s.searchPage(ctx, term, page)
	}

	total, err := s.repo.DownloadCount(ctx)
	if err != nil {
		return nil, err
	}
	p := domain.Paginate(domain.PageButtons, page, total)

	posts, err := s.repo.DownloadPage(ctx, domain.PostsPerPage, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", p.Current, err)
	}
	return &GalleryPage{Posts: posts, Matches: total, Pagination: p}, nil
}

func (s *GalleryService) searchPage(ctx context.Context, term string, page int) (*GalleryPage, error) {
	ids, err := s.repo.Search(ctx, domain.ParseSearch(term))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	p := domain.Paginate(domain.PageButtons, page, int64(len(ids)))
	lo := min(p.Offset(), len(ids))
	hi := min(lo+domain.PostsPerPage, len(ids))

	posts, err := s.repo.DownloadsFor(ctx, ids[lo:hi])
	if err != nil {
		return nil, fmt.Errorf("load search page: %w", err)
	}
	return &GalleryPage{Term: term, Posts: posts, Matches: int64(len(ids)), Pagination: p}, nil
}

// File returns the download record of a post and the path of its primary
// artifact. With thumbnail set, videos resolve to their extracted frame and
// images to themselves.
func (s *GalleryService) File(ctx context.Context, id domain.ExternalID, thumbnail bool) (*domain.Download, string, error) {
	d, err := s.repo.GetDownload(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if thumbnail && d.IsVideo() {
		return d, domain.ThumbnailPath(s.basePath, d.FileName), nil
	}
	return d, domain.FilePath(s.basePath, d.FileName), nil
}
