package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/iconidentify/favmirror/internal/config"
	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/media"
	"github.com/iconidentify/favmirror/internal/queue"
	"github.com/iconidentify/favmirror/internal/repository"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	mp4Header = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2\x00\x00\x00\x08free")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func content(header []byte, size int) []byte {
	data := make([]byte, size)
	copy(data, header)
	return data
}

// fakeSource serves remote posts from a map.
type fakeSource struct {
	posts map[domain.ExternalID]*domain.RemotePost
}

func (f *fakeSource) FetchPost(ctx context.Context, id domain.ExternalID) (*domain.RemotePost, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, domain.ErrRemotePostNotFound
	}
	return p, nil
}

// fakeDownloader serves content bodies by URL.
type fakeDownloader struct {
	mu    sync.Mutex
	files map[string][]byte
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	data, ok := f.files[url]
	if !ok {
		return nil, 0, domain.ErrURLExpired
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

type fakeVideoTool struct{}

func (fakeVideoTool) Duration(ctx context.Context, path string) (float64, error) {
	return 10, nil
}

func (fakeVideoTool) ExtractFrame(ctx context.Context, src, dst string, at float64) error {
	return os.WriteFile(dst, []byte("\xff\xd8\xff\xe0"), 0644)
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeJPEG(ctx context.Context, src, dst string) error {
	return os.WriteFile(dst, []byte("\xff\xd8\xff\xe0small"), 0644)
}

type testEnv struct {
	repo       *repository.SQLitePostRepository
	queue      *queue.Queue
	source     *fakeSource
	downloader *fakeDownloader
	cfg        config.StorageConfig
	ingest     *IngestService
	intake     *IntakeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := t.TempDir()
	cfg := config.StorageConfig{
		BasePath:     base,
		TempPath:     filepath.Join(base, ".tmp"),
		DatabasePath: filepath.Join(base, ".data.db"),
		MaxFileSize:  64 << 20,
	}

	repo, err := repository.OpenSQLite(context.Background(), cfg.DatabasePath)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	env := &testEnv{
		repo:       repo,
		queue:      queue.New(),
		source:     &fakeSource{posts: make(map[domain.ExternalID]*domain.RemotePost)},
		downloader: &fakeDownloader{files: make(map[string][]byte)},
		cfg:        cfg,
	}

	transcoder := media.NewTranscoder(fakeVideoTool{}, fakeEncoder{}, testLogger())
	env.ingest = NewIngestService(repo, env.source, env.downloader, transcoder, cfg, testLogger())
	env.intake = NewIntakeService(repo, env.queue, testLogger())
	return env
}

// addRemote registers a remote post whose content is data.
func (e *testEnv) addRemote(id domain.ExternalID, data []byte, tags ...string) {
	url := "https://cdn.example.org/" + id.String()
	e.source.posts[id] = &domain.RemotePost{ID: id, FileURL: url, Tags: tags}
	e.downloader.files[url] = data
}

func (e *testEnv) tempEntries(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.cfg.TempPath)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	return len(entries)
}
