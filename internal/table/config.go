package table

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/simp-lee/lendpanel/internal/remote"
)

// Source is the request shape chosen for a Query.
type Source int

const (
	SourceList Source = iota
	SourceSearch
	SourceDateRange
)

func (s Source) String() string {
	switch s {
	case SourceSearch:
		return "search"
	case SourceDateRange:
		return "date_range"
	default:
		return "list"
	}
}

// SelectSource picks the endpoint family for q. A complete date range wins
// over a search; a half-set range is ignored.
func SelectSource(q Query) Source {
	switch {
	case q.HasDateRange():
		return SourceDateRange
	case q.SearchQuery != "":
		return SourceSearch
	default:
		return SourceList
	}
}

// Endpoints are the API paths behind one table.
//
// The date-range endpoint is unpaginated and serves both the page view and
// the download set. Empty download paths fall back to their page twin.
type Endpoints struct {
	List              string
	Search            string
	DateRange         string
	Download          string
	DownloadSearch    string
	DownloadDateRange string

	// DateRangeKey is the top-level key of date-range responses ("Loans").
	DateRangeKey string
}

// Config describes one dataset.
type Config struct {
	Name            string
	Title           string
	Columns         []Column
	Endpoints       Endpoints
	Filename        string
	DefaultPageSize int
}

// Validate checks the parts of a Config every request depends on.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if c.Endpoints.List == "" {
		errs = append(errs, errors.New("endpoints.list is required"))
	}
	if len(c.Columns) == 0 {
		errs = append(errs, errors.New("at least one column is required"))
	}
	if !strings.HasSuffix(strings.ToLower(c.Filename), ".csv") {
		errs = append(errs, fmt.Errorf("filename %q must end in .csv", c.Filename))
	}
	if len(errs) > 0 {
		return fmt.Errorf("table %q: %w", c.Name, errors.Join(errs...))
	}
	return nil
}

func (c Config) pageSize() int {
	if c.DefaultPageSize > 0 {
		return c.DefaultPageSize
	}
	return DefaultPageSize
}

// PageRequest builds the API call for the visible page of q.
func (c Config) PageRequest(q Query) remote.Request {
	e := c.Endpoints
	switch SelectSource(q) {
	case SourceDateRange:
		return remote.Request{
			Kind:     SourceDateRange.String(),
			Endpoint: fallback(e.DateRange, e.List),
			Params:   dateParams(q),
		}
	case SourceSearch:
		params := pageParams(q)
		params.Set("q", q.SearchQuery)
		return remote.Request{
			Kind:     SourceSearch.String(),
			Endpoint: fallback(e.Search, e.List),
			Params:   params,
		}
	default:
		return remote.Request{
			Kind:     SourceList.String(),
			Endpoint: e.List,
			Params:   pageParams(q),
		}
	}
}

// DownloadRequest builds the API call for everything matching q's filter.
func (c Config) DownloadRequest(q Query) remote.Request {
	e := c.Endpoints
	switch SelectSource(q) {
	case SourceDateRange:
		return remote.Request{
			Kind:     "download_" + SourceDateRange.String(),
			Endpoint: fallback(e.DownloadDateRange, e.DateRange, e.List),
			Params:   dateParams(q),
		}
	case SourceSearch:
		return remote.Request{
			Kind:     "download_" + SourceSearch.String(),
			Endpoint: fallback(e.DownloadSearch, e.Search, e.List),
			Params:   url.Values{"q": {q.SearchQuery}},
		}
	default:
		return remote.Request{
			Kind:     "download_" + SourceList.String(),
			Endpoint: fallback(e.Download, e.List),
		}
	}
}

// DetailRequest builds the API call for a single row.
func (c Config) DetailRequest(id string) remote.Request {
	return remote.Request{
		Kind:     "detail",
		Endpoint: strings.TrimRight(c.Endpoints.List, "/") + "/" + url.PathEscape(id) + "/",
	}
}

// labels are the keys DecodeRows should try beyond data and results.
func (c Config) labels() []string {
	if c.Endpoints.DateRangeKey == "" {
		return nil
	}
	return []string{c.Endpoints.DateRangeKey}
}

func pageParams(q Query) url.Values {
	return url.Values{
		"page_size": {strconv.Itoa(q.PageSize)},
		"page":      {strconv.Itoa(q.PageNo)},
	}
}

func dateParams(q Query) url.Values {
	return url.Values{
		"start_date": {q.StartDate},
		"end_date":   {q.EndDate},
	}
}

func fallback(paths ...string) string {
	for _, p := range paths {
		if p != "" {
			return p
		}
	}
	return ""
}
