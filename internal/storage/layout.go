// Package storage manages the on-disk layout of the mirror.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/favmirror/internal/domain"
)

// DiskStats describes a filesystem's capacity in bytes.
type DiskStats struct {
	Total uint64
	Free  uint64
}

// Layout is the directory structure of the mirror.
type Layout struct {
	BasePath string
	TempPath string
}

// Ensure creates the base, thumbnail and temp directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.BasePath, l.ThumbsPath(), l.TempPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ThumbsPath returns the thumbnail directory.
func (l Layout) ThumbsPath() string {
	return filepath.Join(l.BasePath, domain.ThumbsDir)
}

// ClearTemp removes files left in the temp directory by a previous run.
func (l Layout) ClearTemp() (int, error) {
	entries, err := os.ReadDir(l.TempPath)
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(l.TempPath, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// CheckFree returns domain.ErrStorageFull when the filesystem holding path
// has fewer than min bytes available. A zero min disables the check.
func CheckFree(path string, min uint64) error {
	if min == 0 {
		return nil
	}

	stats, err := DiskUsage(path)
	if err != nil {
		return err
	}
	if stats.Free < min {
		return fmt.Errorf("%w: %s free, %s required", domain.ErrStorageFull,
			humanize.IBytes(stats.Free), humanize.IBytes(min))
	}
	return nil
}
