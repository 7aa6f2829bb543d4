package domain

import (
	"fmt"
	"strings"
)

// TagKind classifies a tag. The zero value means no classification was supplied.
type TagKind string

const (
	TagKindNone      TagKind = ""
	TagKindCopyright TagKind = "copyright"
	TagKindCharacter TagKind = "character"
	TagKindArtist    TagKind = "artist"
	TagKindGeneral   TagKind = "general"
	TagKindMetadata  TagKind = "metadata"
)

// ParseTagKind validates a tag kind. An empty string yields TagKindNone.
func ParseTagKind(s string) (TagKind, error) {
	switch k := TagKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TagKindNone, TagKindCopyright, TagKindCharacter, TagKindArtist, TagKindGeneral, TagKindMetadata:
		return k, nil
	default:
		return TagKindNone, fmt.Errorf("%w: %q", ErrInvalidTagKind, s)
	}
}

// Tag is a normalized tag name with an optional kind.
type Tag struct {
	Name string  `json:"name"`
	Kind TagKind `json:"kind,omitempty"`
}

// TagUsage is an autocomplete suggestion.
type TagUsage struct {
	Name string  `json:"name"`
	Kind TagKind `json:"kind"`
	Uses int64   `json:"uses"`
}

// NormalizeTagName trims and lowercases a tag name.
func NormalizeTagName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", ErrEmptyTagName
	}
	return n, nil
}

// NewTag builds a normalized tag.
func NewTag(name string, kind TagKind) (Tag, error) {
	n, err := NormalizeTagName(name)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Name: n, Kind: kind}, nil
}

// NormalizeTags normalizes a tag list, dropping empty names and duplicates.
// The first kind seen for a name wins unless it is TagKindNone.
func NormalizeTags(tags []Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	index := make(map[string]int, len(tags))
	for _, t := range tags {
		n, err := NormalizeTagName(t.Name)
		if err != nil {
			continue
		}
		if i, ok := index[n]; ok {
			if out[i].Kind == TagKindNone {
				out[i].Kind = t.Kind
			}
			continue
		}
		index[n] = len(out)
		out = append(out, Tag{Name: n, Kind: t.Kind})
	}
	return out
}

// TagsFromString splits a whitespace separated tag string into untyped tags.
func TagsFromString(s string) []Tag {
	fields := strings.Fields(s)
	tags := make([]Tag, 0, len(fields))
	for _, f := range fields {
		tags = append(tags, Tag{Name: f})
	}
	return NormalizeTags(tags)
}
