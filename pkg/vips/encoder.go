// Package vips wraps the libvips command line tool used to re-encode large
// images.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultQuality is the JPEG quality used for re-encoded images.
const DefaultQuality = 90

// Encoder runs `vips jpegsave` as a subprocess.
type Encoder struct {
	vipsPath string
	quality  int
}

// NewEncoder resolves the vips binary. A quality outside 1-100 falls back
// to DefaultQuality.
func NewEncoder(vipsBin string, quality int) (*Encoder, error) {
	if vipsBin == "" {
		vipsBin = "vips"
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	path, err := exec.LookPath(vipsBin)
	if err != nil {
		return nil, fmt.Errorf("vips not found: %w", err)
	}

	return &Encoder{vipsPath: path, quality: quality}, nil
}

// EncodeJPEG re-encodes src as a JPEG at dst.
func (e *Encoder) EncodeJPEG(ctx context.Context, src, dst string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.vipsPath,
		"jpegsave", src, dst,
		"-Q", strconv.Itoa(e.quality),
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("vips jpegsave: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
