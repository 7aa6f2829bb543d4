package media

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iconidentify/favmirror/internal/domain"
)

// HeaderSize is the number of leading bytes inspected to classify content.
const HeaderSize = 3072

// Kind is the coarse media kind of a file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// Classification is the detected format of a file.
type Classification struct {
	Kind      Kind
	MIME      string
	Extension string // without leading dot
}

// ClassifyFile classifies the file at path from its header bytes.
func ClassifyFile(path string) (Classification, error) {
	f, err := os.Open(path)
	if err != nil {
		return Classification{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Classify(f)
}

// Classify reads up to HeaderSize bytes from r and sniffs the format.
// Content that is neither an image nor a video yields
// domain.ErrUnsupportedMedia.
func Classify(r io.Reader) (Classification, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Classification{}, fmt.Errorf("read header: %w", err)
	}
	if n == 0 {
		return Classification{}, domain.ErrEmptyContent
	}

	mtype := mimetype.Detect(header[:n])
	mime, _, _ := strings.Cut(mtype.String(), ";")

	c := Classification{
		MIME:      mime,
		Extension: strings.TrimPrefix(mtype.Extension(), "."),
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		c.Kind = KindImage
	case strings.HasPrefix(mime, "video/"):
		c.Kind = KindVideo
	default:
		return c, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mime)
	}

	if c.Extension == "" {
		_, sub, _ := strings.Cut(mime, "/")
		c.Extension = sub
	}
	return c, nil
}
