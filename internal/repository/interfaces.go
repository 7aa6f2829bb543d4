package repository

import (
	"context"

	"github.com/iconidentify/favmirror/internal/domain"
)

// PostRepository owns posts, downloads, tags and their associations.
// Implementations are safe for concurrent use.
type PostRepository interface {
	// InsertPosts inserts every id that is not already known and returns
	// exactly the newly inserted ones, in input order.
	InsertPosts(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error)

	// PendingPosts returns posts without a download record, newest first.
	PendingPosts(ctx context.Context) ([]domain.ExternalID, error)

	// DownloadedPosts returns the subset of ids that have a download record.
	DownloadedPosts(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error)

	// InternalID resolves the local sequence id of a known post.
	InternalID(ctx context.Context, id domain.ExternalID) (domain.InternalID, error)

	// CommitDownload records the artifact of an existing post together with
	// its tags in one transaction.
	CommitDownload(ctx context.Context, id domain.ExternalID, media domain.MediaInfo, tags []domain.Tag) (*domain.Download, error)

	// CommitUpload inserts the post if needed, its download record and its
	// tags in one transaction.
	CommitUpload(ctx context.Context, id domain.ExternalID, media domain.MediaInfo, tags []domain.Tag) (*domain.Download, error)

	// GetDownload returns the download record of a post.
	GetDownload(ctx context.Context, id domain.ExternalID) (*domain.Download, error)

	// ListDownloads returns every download record, newest first.
	ListDownloads(ctx context.Context) ([]*domain.Download, error)

	// DownloadPage returns one page of download records, newest first.
	DownloadPage(ctx context.Context, limit, offset int) ([]*domain.Download, error)

	// DownloadsFor returns the download records of ids in input order,
	// skipping ids without one.
	DownloadsFor(ctx context.Context, ids []domain.ExternalID) ([]*domain.Download, error)

	// Search returns posts carrying every include tag and none of the
	// exclude tags, newest first.
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.ExternalID, error)

	// Autocomplete returns up to domain.AutocompleteLimit tags whose name
	// contains term, most used first.
	Autocomplete(ctx context.Context, term string) ([]domain.TagUsage, error)

	// PostCount returns the number of known posts.
	PostCount(ctx context.Context) (int64, error)

	// DownloadCount returns the number of download records.
	DownloadCount(ctx context.Context) (int64, error)

	// Ping checks the underlying storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying storage handle.
	Close() error
}
