package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/favmirror/internal/config"
	"github.com/iconidentify/favmirror/internal/domain"
)

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	// streamClient has no overall timeout; the body is guarded by stall
	// detection instead.
	streamClient *http.Client
	userAgent    string
	cfg          config.DownloadConfig
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP content downloader.
func NewHTTPDownloader(cfg config.DownloadConfig, logger *slog.Logger) *HTTPDownloader {
	streamTransport := http.DefaultTransport.(*http.Transport).Clone()
	streamTransport.ResponseHeaderTimeout = cfg.HeaderTimeout

	return &HTTPDownloader{
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    logger,
	}
}

// Download fetches url as a stream. There is no retry: a failed post is
// picked up again on the next process start.
func (d *HTTPDownloader) Download(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	reqCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "image/*,video/*;q=0.9,*/*;q=0.8")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("send request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		cancel()
		return nil, 0, domain.ErrURLExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		cancel()
		return nil, 0, domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		cancel()
		return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = n
			}
		}
	}

	return newProgressReader(resp.Body, cancel, size, d.cfg, d.logger.With("url", url)), size, nil
}

// progressReader wraps a response body to log progress and abort the
// request once no data arrived for stallTimeout.
type progressReader struct {
	reader       io.ReadCloser
	cancel       context.CancelFunc
	total        int64
	stallTimeout time.Duration
	interval     time.Duration
	watchdog     *time.Timer
	stalled      atomic.Bool
	logger       *slog.Logger

	mu         sync.Mutex
	downloaded int64
	lastLog    time.Time
	closed     bool
}

func newProgressReader(r io.ReadCloser, cancel context.CancelFunc, total int64, cfg config.DownloadConfig, logger *slog.Logger) *progressReader {
	p := &progressReader{
		reader:       r,
		cancel:       cancel,
		total:        total,
		stallTimeout: cfg.StallTimeout,
		interval:     cfg.ProgressInterval,
		lastLog:      time.Now(),
		logger:       logger,
	}
	if p.stallTimeout > 0 {
		p.watchdog = time.AfterFunc(p.stallTimeout, func() {
			p.stalled.Store(true)
			cancel()
		})
	}
	return p
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	if n > 0 && p.watchdog != nil {
		p.watchdog.Reset(p.stallTimeout)
	}
	if err != nil && err != io.EOF && p.stalled.Load() {
		return n, fmt.Errorf("%w: no data received for %v", ErrStalled, p.stallTimeout)
	}

	if n > 0 {
		p.mu.Lock()
		p.downloaded += int64(n)
		if p.interval > 0 && time.Since(p.lastLog) >= p.interval {
			p.logProgressLocked()
			p.lastLog = time.Now()
		}
		p.mu.Unlock()
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.watchdog != nil {
		p.watchdog.Stop()
	}
	p.logger.Debug("download finished", "downloaded", humanize.Bytes(uint64(p.downloaded)))
	p.mu.Unlock()

	err := p.reader.Close()
	p.cancel()
	return err
}

func (p *progressReader) logProgressLocked() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"downloaded", humanize.Bytes(uint64(p.downloaded)),
			"total", humanize.Bytes(uint64(p.total)),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
		return
	}
	p.logger.Info("download progress",
		"downloaded", humanize.Bytes(uint64(p.downloaded)),
	)
}
