package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/favmirror/internal/domain"
)

// CompressionThreshold is the image size from which re-encoding is tried.
const CompressionThreshold = 3 << 20

// ThumbnailOffset is the fraction of a video's duration at which its
// thumbnail frame is taken.
const ThumbnailOffset = 0.1

// Formats that already compress well are never re-encoded.
var compressionBlacklist = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"gif":  true,
}

// VideoTool probes and thumbnails videos.
type VideoTool interface {
	Duration(ctx context.Context, path string) (float64, error)
	ExtractFrame(ctx context.Context, src, dst string, at float64) error
}

// ImageEncoder re-encodes images as JPEG.
type ImageEncoder interface {
	EncodeJPEG(ctx context.Context, src, dst string) error
}

// Artifacts is the normalized output of a transcode, still in scratch space.
type Artifacts struct {
	Primary   string
	Thumbnail string // empty for images
	Media     domain.MediaInfo
}

// Transcoder normalizes classified content.
type Transcoder struct {
	video  VideoTool
	images ImageEncoder
	logger *slog.Logger
}

// NewTranscoder creates a transcoder.
func NewTranscoder(video VideoTool, images ImageEncoder, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		video:  video,
		images: images,
		logger: logger,
	}
}

// Transcode turns the classified file at src into its artifact set. Any
// intermediate file is reserved through g.
func (t *Transcoder) Transcode(ctx context.Context, g *Guard, src string, c Classification) (*Artifacts, error) {
	switch c.Kind {
	case KindVideo:
		return t.transcodeVideo(ctx, g, src, c)
	case KindImage:
		return t.transcodeImage(ctx, g, src, c)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, c.MIME)
	}
}

// Videos are kept as-is and get a single frame thumbnail.
func (t *Transcoder) transcodeVideo(ctx context.Context, g *Guard, src string, c Classification) (*Artifacts, error) {
	duration, err := t.video.Duration(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	thumb := g.Path("thumb-", domain.ThumbnailSuffix)
	at := duration * ThumbnailOffset
	if err := t.video.ExtractFrame(ctx, src, thumb, at); err != nil {
		return nil, fmt.Errorf("extract thumbnail: %w", err)
	}
	if _, err := os.Stat(thumb); err != nil {
		return nil, fmt.Errorf("thumbnail not written: %w", err)
	}

	t.logger.Debug("video thumbnail extracted",
		"duration_seconds", duration,
		"at_seconds", at,
	)

	return &Artifacts{
		Primary:   src,
		Thumbnail: thumb,
		Media: domain.MediaInfo{
			MIME:      c.MIME,
			Extension: c.Extension,
			Original:  true,
		},
	}, nil
}

// Large images not on the blacklist are re-encoded, and the smaller of the
// two files is kept.
func (t *Transcoder) transcodeImage(ctx context.Context, g *Guard, src string, c Classification) (*Artifacts, error) {
	original := &Artifacts{
		Primary: src,
		Media: domain.MediaInfo{
			MIME:      c.MIME,
			Extension: c.Extension,
			Original:  true,
		},
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	if info.Size() < CompressionThreshold || compressionBlacklist[c.Extension] {
		return original, nil
	}

	encoded := g.Path("enc-", ".jpeg")
	if err := t.images.EncodeJPEG(ctx, src, encoded); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	encodedInfo, err := os.Stat(encoded)
	if err != nil {
		return nil, fmt.Errorf("stat encoded image: %w", err)
	}

	t.logger.Debug("image re-encoded",
		"original_size", humanize.Bytes(uint64(info.Size())),
		"encoded_size", humanize.Bytes(uint64(encodedInfo.Size())),
	)

	if encodedInfo.Size() >= info.Size() {
		return original, nil
	}

	return &Artifacts{
		Primary: encoded,
		Media: domain.MediaInfo{
			MIME:      "image/jpeg",
			Extension: "jpeg",
			Original:  false,
		},
	}, nil
}
