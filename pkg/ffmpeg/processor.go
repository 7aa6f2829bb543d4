// Package ffmpeg wraps the ffprobe and ffmpeg binaries used to thumbnail
// videos.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("ffprobe reported no duration")

// Processor runs ffprobe and ffmpeg as subprocesses.
type Processor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor resolves the ffmpeg and ffprobe binaries. Names without a
// path separator are looked up in PATH.
func NewProcessor(ffmpegBin, ffprobeBin string) (*Processor, error) {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}

	ffmpegPath, err := exec.LookPath(ffmpegBin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	ffprobePath, err := exec.LookPath(ffprobeBin)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &Processor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// Duration returns the container duration of a media file in seconds.
func (p *Processor) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-i", path,
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	return parseDuration(output)
}

// ExtractFrame writes the single frame at the given offset (seconds) of src
// to dst as a JPEG.
func (p *Processor) ExtractFrame(ctx context.Context, src, dst string, at float64) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-y",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		"-update", "1",
		dst,
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg extract frame: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

// Version returns the first line of `ffmpeg -version`.
func (p *Processor) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, p.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg version: %w", err)
	}
	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}

func parseDuration(output []byte) (float64, error) {
	s := strings.TrimSpace(string(output))
	if s == "" || s == "N/A" {
		return 0, ErrNoDuration
	}

	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, ErrNoDuration
	}
	return d, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
