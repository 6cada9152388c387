package table

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageSize is used when a Config leaves DefaultPageSize unset.
const DefaultPageSize = 100

// MaxPageSize bounds page_size values taken from the URL.
const MaxPageSize = 100

// DateLayout is the wire format of StartDate and EndDate.
const DateLayout = "2006-01-02"

// Query is the filter and pagination state of one table.
//
// SearchQuery is the committed search; text typed into the search box is
// staged with SetSearchQuery and only takes effect on CommitSearch.
type Query struct {
	PageNo      int
	PageSize    int
	SearchQuery string
	StartDate   string
	EndDate     string

	staged string
}

// NewQuery returns the initial state: page 1, no filters.
func NewQuery(pageSize int) Query {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Query{PageNo: 1, PageSize: pageSize}
}

// SetPage moves to page n. It does not clamp; an out-of-range page is
// requested as-is and shows whatever the server returns.
func (q *Query) SetPage(n int) {
	q.PageNo = n
}

// SetSearchQuery stages s without changing the active search.
func (q *Query) SetSearchQuery(s string) {
	q.staged = s
}

// StagedSearch returns the staged, uncommitted search text.
func (q Query) StagedSearch() string {
	return q.staged
}

// CommitSearch activates the staged search and returns to page 1.
func (q *Query) CommitSearch() {
	q.SearchQuery = strings.TrimSpace(q.staged)
	q.PageNo = 1
}

// SetStartDate sets the lower date bound and returns to page 1.
func (q *Query) SetStartDate(d string) {
	q.StartDate = strings.TrimSpace(d)
	q.PageNo = 1
}

// SetEndDate sets the upper date bound and returns to page 1.
func (q *Query) SetEndDate(d string) {
	q.EndDate = strings.TrimSpace(d)
	q.PageNo = 1
}

// HasDateRange reports whether both date bounds are set.
func (q Query) HasDateRange() bool {
	return q.StartDate != "" && q.EndDate != ""
}

// Values encodes the state for the browser URL. Empty filters and page 1
// are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.SearchQuery != "" {
		v.Set("q", q.SearchQuery)
	}
	if q.StartDate != "" {
		v.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("endDate", q.EndDate)
	}
	if q.PageNo > 1 {
		v.Set("page", strconv.Itoa(q.PageNo))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// QueryFromValues builds the initial state from URL query parameters.
// Unparseable numbers fall back to defaults; page_size is capped at MaxPageSize.
func QueryFromValues(v url.Values, defaultPageSize int) Query {
	q := NewQuery(defaultPageSize)

	if n, err := strconv.Atoi(v.Get("page")); err == nil && n > 0 {
		q.PageNo = n
	}
	if n, err := strconv.Atoi(v.Get("page_size")); err == nil && n > 0 {
		q.PageSize = min(n, MaxPageSize)
	}

	q.SetSearchQuery(v.Get("q"))
	q.SearchQuery = strings.TrimSpace(q.staged)
	q.StartDate = strings.TrimSpace(v.Get("startDate"))
	q.EndDate = strings.TrimSpace(v.Get("endDate"))
	return q
}
