package table

import "fmt"

// TotalPages is ceil(total/size). It is 0 when total is 0 or size is not positive.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Pagination is the navigation state derived from a Query and its PageResult.
type Pagination struct {
	PageNo     int
	PageSize   int
	TotalCount int
}

// NewPagination derives navigation for q against a result of total rows.
func NewPagination(q Query, total int) Pagination {
	return Pagination{PageNo: q.PageNo, PageSize: q.PageSize, TotalCount: total}
}

func (p Pagination) TotalPages() int {
	return TotalPages(p.TotalCount, p.PageSize)
}

// HasPrevious reports whether the Previous control is enabled.
func (p Pagination) HasPrevious() bool {
	return p.PageNo > 1
}

// HasNext reports whether the Next control is enabled.
func (p Pagination) HasNext() bool {
	return p.PageNo*p.PageSize < p.TotalCount
}

// HasLast reports whether the Last control is enabled. With no rows there is
// no last page to jump to.
func (p Pagination) HasLast() bool {
	return p.TotalPages() > 0 && p.PageNo != p.TotalPages()
}

func (p Pagination) PreviousPage() int { return p.PageNo - 1 }

func (p Pagination) NextPage() int { return p.PageNo + 1 }

// Indicator renders the page label, e.g. "Page 1 of 3 (250 total)".
func (p Pagination) Indicator() string {
	return fmt.Sprintf("Page %d of %d (%d total)", p.PageNo, p.TotalPages(), p.TotalCount)
}
