package dataset

import (
	"net/url"
	"slices"

	"github.com/simp-lee/lendpanel/internal/table"
)

// tableView is what the table templates render.
type tableView struct {
	Name       string
	Title      string
	Filename   string
	Headers    []headerView
	Rows       []rowView
	Pagination table.Pagination
	Query      table.Query
	Source     string
	Error      string
}

type headerView struct {
	Label  string
	Key    string
	Amount bool
}

type rowView struct {
	ID    string
	Cells []cellView
}

type cellView struct {
	Value  any
	Amount bool
}

// fieldView is one label/value pair on the detail page.
type fieldView struct {
	Label  string
	Value  any
	Amount bool
}

func newTableView(cfg table.Config, q table.Query, page table.PageResult) tableView {
	v := tableView{
		Name:       cfg.Name,
		Title:      cfg.Title,
		Filename:   cfg.Filename,
		Pagination: table.NewPagination(q, page.TotalCount),
		Query:      q,
		Source:     table.SelectSource(q).String(),
	}
	for _, c := range cfg.Columns {
		v.Headers = append(v.Headers, headerView{Label: c.Header, Key: c.Key, Amount: c.Amount})
	}
	// Accessor indexes continue across pages so positional IDs stay unique.
	offset := max(q.PageNo-1, 0) * q.PageSize
	for i, row := range page.Rows {
		rv := rowView{ID: table.RowID(row), Cells: make([]cellView, len(cfg.Columns))}
		for j, c := range cfg.Columns {
			rv.Cells[j] = cellView{Value: c.Value(row, offset+i), Amount: c.Amount}
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}

// URL is the canonical address of this table at page n.
func (v tableView) URL(n int) string {
	q := v.Query
	q.SetPage(n)
	return "/" + v.Name + encode(q.Values())
}

// CurrentURL is the canonical address of the current state.
func (v tableView) CurrentURL() string {
	return "/" + v.Name + encode(v.Query.Values())
}

// ExportURL downloads the CSV for the current filter.
func (v tableView) ExportURL() string {
	vals := v.Query.Values()
	vals.Del("page")
	vals.Del("page_size")
	return "/" + v.Name + "/export" + encode(vals)
}

// DetailURL links a row to its detail page.
func (v tableView) DetailURL(id string) string {
	return "/" + v.Name + "/" + url.PathEscape(id)
}

// LastPage is the page the Last control jumps to.
func (v tableView) LastPage() int {
	return v.Pagination.TotalPages()
}

// PageSizeOptions lists the selectable page sizes.
func (v tableView) PageSizeOptions() []int {
	opts := []int{10, 25, 50, 100}
	if !slices.Contains(opts, v.Query.PageSize) {
		opts = append(opts, v.Query.PageSize)
		slices.Sort(opts)
	}
	return opts
}

func encode(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// detailFields orders a row for display: configured columns first, then any
// remaining keys alphabetically.
func detailFields(cfg table.Config, row table.Row) []fieldView {
	seen := make(map[string]bool, len(cfg.Columns))
	fields := make([]fieldView, 0, len(row))
	for _, c := range cfg.Columns {
		if c.Key == "" {
			continue
		}
		seen[c.Key] = true
		if v, ok := row[c.Key]; ok {
			fields = append(fields, fieldView{Label: c.Header, Value: v, Amount: c.Amount})
		}
	}
	extra := make([]string, 0, len(row))
	for k := range row {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		fields = append(fields, fieldView{Label: k, Value: row[k]})
	}
	return fields
}
