package domain

import (
	"errors"
	"strconv"
)

// Domain errors.
var (
	// ErrPostNotFound is returned when a post has no row in the store.
	ErrPostNotFound = errors.New("post not found")

	// ErrRemotePostNotFound is returned when the remote API has no record for an id.
	ErrRemotePostNotFound = errors.New("remote API returned no post")

	// ErrAlreadyDownloaded is returned when a post already has a download record.
	ErrAlreadyDownloaded = errors.New("post already downloaded")

	// ErrUnsupportedMedia is returned when content is neither an image nor a video.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrEmptyContent is returned when downloaded content has no bytes.
	ErrEmptyContent = errors.New("content is empty")

	// ErrNoContentURL is returned when remote metadata has no file URL.
	ErrNoContentURL = errors.New("post has no content URL")

	// ErrURLExpired is returned when the content URL is no longer accessible.
	ErrURLExpired = errors.New("content URL has expired")

	// ErrRateLimited is returned when rate limited by the remote source.
	ErrRateLimited = errors.New("rate limited")

	// ErrFileTooLarge is returned when content exceeds the configured maximum size.
	ErrFileTooLarge = errors.New("content exceeds maximum file size")

	// ErrStorageFull is returned when there is insufficient storage space.
	ErrStorageFull = errors.New("insufficient storage space")

	// ErrEmptyTagName is returned when a tag name is empty after normalization.
	ErrEmptyTagName = errors.New("tag name cannot be empty")

	// ErrInvalidTagKind is returned for an unknown tag kind.
	ErrInvalidTagKind = errors.New("invalid tag kind")

	// ErrInvalidPostID is returned when an external id is not a positive integer.
	ErrInvalidPostID = errors.New("invalid post id")

	// ErrQueueClosed is returned by the ingestion queue once it is closed.
	ErrQueueClosed = errors.New("queue closed")
)

// IsPermanent reports whether err is a content error that a later attempt
// will not fix unless the remote content changes.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedMedia) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrRemotePostNotFound) ||
		errors.Is(err, ErrNoContentURL) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrAlreadyDownloaded)
}

// PostError wraps an error with post context.
type PostError struct {
	PostID ExternalID
	Op     string
	Err    error
}

func (e *PostError) Error() string {
	if e.PostID != 0 {
		return e.Op + " [" + strconv.FormatInt(int64(e.PostID), 10) + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// NewPostError creates a new PostError.
func NewPostError(postID ExternalID, op string, err error) *PostError {
	return &PostError{
		PostID: postID,
		Op:     op,
		Err:    err,
	}
}
