package dataset

import "github.com/simp-lee/lendpanel/internal/table"

// listQuery is the URL contract of every dataset page, export and API call.
//
// q is the committed search carried by links. search is the text box of the
// filter form; its presence marks a form submission, which commits it and
// returns to page 1.
type listQuery struct {
	Page      int    `form:"page" binding:"omitempty,gte=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,gte=1,lte=100"`
	Q         string `form:"q" binding:"max=200"`
	Search    string `form:"search" binding:"max=200"`
	StartDate string `form:"startDate" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" binding:"omitempty,datetime=2006-01-02"`
	Download  bool   `form:"download"`
}

// tableJSON is the API shape of one table fetch.
type tableJSON struct {
	Dataset     string      `json:"dataset"`
	Source      string      `json:"source"`
	Query       queryJSON   `json:"query"`
	Items       []table.Row `json:"items"`
	TotalCount  int         `json:"total_count"`
	TotalPages  int         `json:"total_pages"`
	HasPrevious bool        `json:"has_previous"`
	HasNext     bool        `json:"has_next"`
	Indicator   string      `json:"indicator"`
	Download    []table.Row `json:"download,omitempty"`
}

type queryJSON struct {
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	Q         string `json:"q,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// datasetJSON describes one dataset in the API index.
type datasetJSON struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Filename string   `json:"filename"`
	Columns  []string `json:"columns"`
}

func newTableJSON(ctrl *table.Controller, withDownload bool) tableJSON {
	q := ctrl.Query()
	page := ctrl.Page()
	p := ctrl.Pagination()
	out := tableJSON{
		Dataset: ctrl.Config().Name,
		Source:  table.SelectSource(q).String(),
		Query: queryJSON{
			Page:      q.PageNo,
			PageSize:  q.PageSize,
			Q:         q.SearchQuery,
			StartDate: q.StartDate,
			EndDate:   q.EndDate,
		},
		Items:       page.Rows,
		TotalCount:  page.TotalCount,
		TotalPages:  p.TotalPages(),
		HasPrevious: p.HasPrevious(),
		HasNext:     p.HasNext(),
		Indicator:   p.Indicator(),
	}
	if withDownload {
		out.Download = ctrl.Download().Rows
		if out.Download == nil {
			out.Download = []table.Row{}
		}
	}
	return out
}

func newDatasetJSON(cfg table.Config) datasetJSON {
	headers := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		headers[i] = c.Header
	}
	return datasetJSON{Name: cfg.Name, Title: cfg.Title, Filename: cfg.Filename, Columns: headers}
}
