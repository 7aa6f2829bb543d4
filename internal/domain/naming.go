package domain

import (
	"fmt"
	"path/filepath"
)

// ThumbsDir is the subdirectory of the base path holding video thumbnails.
const ThumbsDir = ".thumbs"

// ThumbnailSuffix is appended to a video file name to name its thumbnail.
const ThumbnailSuffix = ".jpeg"

// FileName returns the final file name of a post artifact. The internal id is
// zero-padded so lexicographic listing follows ingestion order.
func FileName(id InternalID, externalID ExternalID, extension string) string {
	return fmt.Sprintf("%07d_%d.%s", int64(id), int64(externalID), extension)
}

// ThumbnailName returns the thumbnail file name for a primary artifact.
func ThumbnailName(fileName string) string {
	return fileName + ThumbnailSuffix
}

// FilePath returns the absolute location of a primary artifact.
func FilePath(basePath, fileName string) string {
	return filepath.Join(basePath, fileName)
}

// ThumbnailPath returns the location of the thumbnail for a primary artifact.
func ThumbnailPath(basePath, fileName string) string {
	return filepath.Join(basePath, ThumbsDir, ThumbnailName(fileName))
}
