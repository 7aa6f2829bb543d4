package domain

// PostsPerPage is the gallery page size.
const PostsPerPage = 40

// PageButtons is the number of numbered page links shown at once.
const PageButtons = 5

// Pagination describes the page links around the current gallery page.
type Pagination struct {
	Current   int
	Total     int
	Pages     []int
	ShowFirst bool
	ShowLast  bool
}

// Paginate computes a window of at most buttons page numbers centered on
// current, shifted so it never runs past either end. current is clamped to
// [1, total pages].
func Paginate(buttons, current int, items int64) Pagination {
	total := int((items + PostsPerPage - 1) / PostsPerPage)
	if total == 0 {
		return Pagination{}
	}
	if buttons < 1 {
		buttons = 1
	}
	current = min(max(current, 1), total)

	start := max(current-(buttons-1)/2, 1)
	if start+buttons-1 > total {
		start = max(total-buttons+1, 1)
	}
	end := min(start+buttons-1, total)

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}

	return Pagination{
		Current:   current,
		Total:     total,
		Pages:     pages,
		ShowFirst: start > 1,
		ShowLast:  end < total,
	}
}

// Offset returns the row offset of page p.
func (p Pagination) Offset() int {
	if p.Current < 1 {
		return 0
	}
	return (p.Current - 1) * PostsPerPage
}

// Prev returns the previous page number, or 0 on the first page.
func (p Pagination) Prev() int {
	if p.Current <= 1 {
		return 0
	}
	return p.Current - 1
}

// Next returns the next page number, or 0 on the last page.
func (p Pagination) Next() int {
	if p.Current >= p.Total {
		return 0
	}
	return p.Current + 1
}
