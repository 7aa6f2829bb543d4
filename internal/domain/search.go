package domain

import "strings"

// AutocompleteLimit caps the number of tag suggestions.
const AutocompleteLimit = 10

// SearchQuery is a parsed tag search.
type SearchQuery struct {
	Include []string
	Exclude []string
}

// ParseSearch splits a raw query into include terms (bare words) and exclude
// terms (words prefixed with "-"). A lone "-" is dropped. Terms are
// normalized like tag names and deduplicated.
func ParseSearch(input string) SearchQuery {
	var q SearchQuery
	seenInc := make(map[string]bool)
	seenExc := make(map[string]bool)

	for _, term := range strings.Fields(input) {
		if t, ok := strings.CutPrefix(term, "-"); ok {
			n, err := NormalizeTagName(t)
			if err != nil || seenExc[n] {
				continue
			}
			seenExc[n] = true
			q.Exclude = append(q.Exclude, n)
			continue
		}
		n, err := NormalizeTagName(term)
		if err != nil || seenInc[n] {
			continue
		}
		seenInc[n] = true
		q.Include = append(q.Include, n)
	}
	return q
}

// IsEmpty reports whether the query has no include terms.
func (q SearchQuery) IsEmpty() bool {
	return len(q.Include) == 0
}
