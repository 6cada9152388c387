package dataset

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/lendpanel/internal/domain"
	"github.com/simp-lee/lendpanel/internal/middleware"
	"github.com/simp-lee/lendpanel/internal/observability"
	"github.com/simp-lee/lendpanel/internal/pkg"
	"github.com/simp-lee/lendpanel/internal/table"
)

// Recorder receives table and export metrics. *observability.Metrics
// implements it.
type Recorder interface {
	table.Observer
	ExportFinished(dataset, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) StaleDiscarded(string, string) {}
func (nopRecorder) ExportFinished(string, string) {}

// DatasetHandler serves every registered dataset: the table page, its CSV
// export, the detail view and the JSON API.
type DatasetHandler struct {
	registry *Registry
	fetcher  table.Fetcher
	exports  domain.ExportService
	recorder Recorder
	logger   *slog.Logger
}

// NewDatasetHandler creates a DatasetHandler. exports may be nil, in which
// case CSV downloads are not recorded.
func NewDatasetHandler(reg *Registry, fetcher table.Fetcher, exports domain.ExportService, recorder Recorder, logger *slog.Logger) *DatasetHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetHandler{
		registry: reg,
		fetcher:  fetcher,
		exports:  exports,
		recorder: recorder,
		logger:   logger,
	}
}

// bind builds a controller for this request from the URL state. A submitted
// filter form (the search key is present) commits the typed search and the
// date bounds, which resets to page 1.
func (h *DatasetHandler) bind(c *gin.Context, cfg table.Config) (*table.Controller, listQuery, error) {
	var in listQuery
	if err := c.ShouldBindQuery(&in); err != nil {
		return nil, in, err
	}
	if in.StartDate != "" && in.EndDate != "" && in.StartDate > in.EndDate {
		return nil, in, domain.NewAppError(domain.CodeValidation, "start date must not be after end date", nil)
	}

	values := c.Request.URL.Query()
	ctrl := table.NewController(cfg, h.fetcher,
		func() string { return middleware.GetToken(c) },
		table.WithQuery(table.QueryFromValues(values, cfg.DefaultPageSize)),
		table.WithLogger(h.logger),
		table.WithObserver(h.recorder),
	)
	if values.Has("search") {
		ctrl.SetSearchQuery(in.Search)
		ctrl.CommitSearch()
		ctrl.SetStartDate(in.StartDate)
		ctrl.SetEndDate(in.EndDate)
	}
	return ctrl, in, nil
}

// Page renders the table for one dataset.
// GET /{dataset}
func (h *DatasetHandler) Page(cfg table.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl, _, err := h.bind(c, cfg)
		if err != nil {
			h.pageError(c, cfg, table.QueryFromValues(c.Request.URL.Query(), cfg.DefaultPageSize), filterError(err))
			return
		}

		page, err := ctrl.FetchPage(c.Request.Context())
		if err != nil {
			h.pageError(c, cfg, ctrl.Query(), err)
			return
		}

		view := newTableView(cfg, ctrl.Query(), page)
		if pkg.IsHTMX(c) {
			pkg.PushURL(c, view.CurrentURL())
			c.HTML(http.StatusOK, "table/table.html", h.pageData(c, view))
			return
		}
		c.HTML(http.StatusOK, "table/list.html", h.pageData(c, view))
	}
}

func (h *DatasetHandler) pageData(c *gin.Context, view tableView) gin.H {
	return gin.H{
		"Title":     view.Title,
		"Active":    view.Name,
		"Table":     view,
		"CSRFToken": middleware.GetCSRFToken(c),
	}
}

// pageError keeps the current content for htmx requests and renders the
// table with an error banner for full page loads.
func (h *DatasetHandler) pageError(c *gin.Context, cfg table.Config, q table.Query, err error) {
	if domain.IsUnauthorized(err) {
		h.signIn(c)
		return
	}
	msg := errorMessage(err)
	if pkg.IsHTMX(c) {
		pkg.Toast(c, msg, pkg.ToastError)
		pkg.KeepContent(c)
		c.Status(http.StatusOK)
		return
	}
	view := newTableView(cfg, q, table.PageResult{Rows: []table.Row{}})
	view.Error = msg
	c.HTML(domain.HTTPStatusCode(err), "table/list.html", h.pageData(c, view))
}

// Export streams the CSV of every row matching the current filter.
// GET /{dataset}/export
func (h *DatasetHandler) Export(cfg table.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctrl, _, err := h.bind(c, cfg)
		if err != nil {
			h.exportError(c, cfg, filterError(err))
			return
		}

		download, err := ctrl.FetchDownloadSet(ctx)
		if err != nil {
			h.exportError(c, cfg, err)
			return
		}

		var buf bytes.Buffer
		if err := ctrl.ExportCSV(ctx, &buf); err != nil {
			if errors.Is(err, table.ErrNothingToExport) {
				h.recorder.ExportFinished(cfg.Name, observability.ExportEmpty)
				pkg.Toast(c, "Nothing to export for the current filter.", pkg.ToastInfo)
				pkg.KeepContent(c)
				c.Status(http.StatusNoContent)
				return
			}
			h.exportError(c, cfg, err)
			return
		}

		q := ctrl.Query()
		h.record(ctx, &domain.ExportRecord{
			Dataset:   cfg.Name,
			Filename:  cfg.Filename,
			Rows:      len(download.Rows),
			Search:    q.SearchQuery,
			StartDate: q.StartDate,
			EndDate:   q.EndDate,
			RequestID: middleware.GetRequestID(c),
		})
		h.recorder.ExportFinished(cfg.Name, observability.ExportOK)

		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": cfg.Filename}))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}

func (h *DatasetHandler) record(ctx context.Context, rec *domain.ExportRecord) {
	if h.exports == nil {
		return
	}
	if err := h.exports.Record(ctx, rec); err != nil {
		h.logger.ErrorContext(ctx, "failed to record export",
			slog.String("dataset", rec.Dataset),
			slog.String("error", err.Error()),
		)
	}
}

func (h *DatasetHandler) exportError(c *gin.Context, cfg table.Config, err error) {
	h.recorder.ExportFinished(cfg.Name, observability.ExportError)
	if domain.IsUnauthorized(err) {
		h.signIn(c)
		return
	}
	msg := errorMessage(err)
	status := domain.HTTPStatusCode(err)
	if pkg.IsHTMX(c) {
		// A failed export must never be mistaken for an empty file.
		pkg.Toast(c, msg, pkg.ToastError)
		pkg.KeepContent(c)
		c.Status(status)
		return
	}
	c.HTML(status, errorTemplate(status), gin.H{"Title": cfg.Title, "Message": msg})
}

// Detail renders one record.
// GET /{dataset}/:id
func (h *DatasetHandler) Detail(cfg table.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl := table.NewController(cfg, h.fetcher,
			func() string { return middleware.GetToken(c) },
			table.WithLogger(h.logger),
		)
		row, err := ctrl.FetchRow(c.Request.Context(), c.Param("id"))
		if err != nil {
			if domain.IsUnauthorized(err) {
				h.signIn(c)
				return
			}
			status := domain.HTTPStatusCode(err)
			c.HTML(status, errorTemplate(status), gin.H{"Title": cfg.Title, "Message": errorMessage(err)})
			return
		}
		c.HTML(http.StatusOK, "table/detail.html", gin.H{
			"Title":   cfg.Title,
			"Active":  cfg.Name,
			"Dataset": cfg.Name,
			"ID":      c.Param("id"),
			"Fields":  detailFields(cfg, row),
			"BackURL": "/" + cfg.Name,
		})
	}
}

// signIn sends the browser to the sign-in page after the lending API
// rejected the session.
func (h *DatasetHandler) signIn(c *gin.Context) {
	target := "/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	if pkg.IsHTMX(c) {
		pkg.Redirect(c, target)
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

// API returns one page as JSON. download=1 also returns the full download set.
// GET /api/v1/tables/{dataset}
func (h *DatasetHandler) API(cfg table.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl, in, err := h.bind(c, cfg)
		if err != nil {
			if domain.IsValidation(err) {
				pkg.Error(c, err)
				return
			}
			pkg.ValidationErrorFor(c, err, &in)
			return
		}

		ctx := c.Request.Context()
		if in.Download {
			err = ctrl.Refresh(ctx)
		} else {
			_, err = ctrl.FetchPage(ctx)
		}
		if err != nil {
			pkg.Error(c, err)
			return
		}
		pkg.Success(c, newTableJSON(ctrl, in.Download))
	}
}

// APIDetail returns one record as JSON.
// GET /api/v1/tables/{dataset}/:id
func (h *DatasetHandler) APIDetail(cfg table.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl := table.NewController(cfg, h.fetcher,
			func() string { return middleware.GetToken(c) },
			table.WithLogger(h.logger),
		)
		row, err := ctrl.FetchRow(c.Request.Context(), c.Param("id"))
		if err != nil {
			pkg.Error(c, err)
			return
		}
		pkg.Success(c, row)
	}
}

// APIIndex lists the registered datasets.
// GET /api/v1/tables
func (h *DatasetHandler) APIIndex(c *gin.Context) {
	configs := h.registry.All()
	out := make([]datasetJSON, len(configs))
	for i, cfg := range configs {
		out[i] = newDatasetJSON(cfg)
	}
	pkg.Success(c, out)
}

func errorMessage(err error) string {
	return pkg.SafeMessage(err, "Could not load data from the lending API.")
}

// filterError turns a query binding failure into a user-facing validation
// error. AppErrors pass through.
func filterError(err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return domain.NewAppError(domain.CodeValidation, "Invalid filter. Check the dates and the page size.", err)
}

func errorTemplate(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "errors/400.html"
	case http.StatusNotFound:
		return "errors/404.html"
	case http.StatusBadGateway:
		return "errors/502.html"
	default:
		return "errors/500.html"
	}
}
