package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExternalID is the post identifier assigned by the remote board.
type ExternalID int64

// String returns the decimal representation of the ExternalID.
func (id ExternalID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseExternalID parses a positive decimal post id.
func ParseExternalID(s string) (ExternalID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPostID, s)
	}
	return ExternalID(n), nil
}

// InternalID is the local, monotonic sequence number of a post.
type InternalID int64

// String returns the decimal representation of the InternalID.
func (id InternalID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Post is a favorited post known to the store.
type Post struct {
	ID         InternalID
	ExternalID ExternalID
	CreatedAt  time.Time
}

// Download records the stored artifact of a post. It is written once.
type Download struct {
	PostID     InternalID
	ExternalID ExternalID
	FileName   string
	MIME       string
	Extension  string
	Original   bool
	CreatedAt  time.Time
}

// IsVideo reports whether the stored artifact is a video.
func (d *Download) IsVideo() bool {
	return strings.HasPrefix(d.MIME, "video/")
}

// MediaInfo describes a normalized artifact before it is committed.
type MediaInfo struct {
	MIME      string
	Extension string
	Original  bool
}

// RemotePost is the metadata the remote API returns for a post.
type RemotePost struct {
	ID      ExternalID
	FileURL string
	Tags    []string
	MD5     string
	Rating  string
}
