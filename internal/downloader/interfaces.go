package downloader

import (
	"context"
	"errors"
	"io"
)

// ErrStalled is returned by a download body that received no data for the
// configured stall timeout.
var ErrStalled = errors.New("download stalled")

// Downloader fetches post content from URLs.
type Downloader interface {
	// Download starts a streaming GET of url and returns the body and its
	// size (-1 when unknown). Caller is responsible for closing the reader.
	Download(ctx context.Context, url string) (io.ReadCloser, int64, error)
}
