//go:build windows

package storage

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// DiskUsage returns total and available bytes of the volume holding path.
func DiskUsage(path string) (DiskStats, error) {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return DiskStats{}, fmt.Errorf("encode path: %w", err)
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return DiskStats{}, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", path, err)
	}

	return DiskStats{
		Total: totalBytes,
		Free:  freeBytes,
	}, nil
}
