//go:build !windows

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskUsage returns total and available bytes of the filesystem holding path.
func DiskUsage(path string) (DiskStats, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return DiskStats{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	return DiskStats{
		Total: uint64(fs.Blocks) * uint64(fs.Bsize),
		Free:  uint64(fs.Bavail) * uint64(fs.Bsize),
	}, nil
}
