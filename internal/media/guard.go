// Package media classifies, transcodes and places downloaded post content.
package media

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Guard tracks every file a pipeline run creates. Scratch files are always
// removed on Release. Files placed into final storage are removed on Release
// unless Commit was called first.
//
// Typical use:
//
//	g := media.NewGuard(tempDir, logger)
//	defer g.Release()
//	...
//	g.Commit()
type Guard struct {
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	scratch   []string
	placed    []string
	committed bool
	released  bool
}

// NewGuard creates a guard whose scratch files live in dir.
func NewGuard(dir string, logger *slog.Logger) *Guard {
	return &Guard{
		dir:    dir,
		logger: logger,
	}
}

// Path reserves a unique scratch path in the guard directory. The file is
// not created.
func (g *Guard) Path(prefix, suffix string) string {
	path := filepath.Join(g.dir, prefix+uuid.New().String()+suffix)

	g.mu.Lock()
	g.scratch = append(g.scratch, path)
	g.mu.Unlock()

	return path
}

// Create creates a new scratch file.
func (g *Guard) Create(prefix, suffix string) (*os.File, error) {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	path := g.Path(prefix, suffix)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Place moves src to its final location dst and tracks dst until Commit.
func (g *Guard) Place(src, dst string) error {
	g.mu.Lock()
	g.placed = append(g.placed, dst)
	g.mu.Unlock()

	return Place(src, dst)
}

// Commit keeps placed files on Release.
func (g *Guard) Commit() {
	g.mu.Lock()
	g.committed = true
	g.mu.Unlock()
}

// Release removes scratch files and, if not committed, placed files.
// It is safe to call more than once.
func (g *Guard) Release() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	paths := append([]string(nil), g.scratch...)
	if !g.committed {
		paths = append(paths, g.placed...)
	}
	g.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			g.logger.Warn("failed to remove artifact", "path", p, "error", err)
		}
	}
}
