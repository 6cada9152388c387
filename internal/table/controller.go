// Package table implements the paginated remote table: filter and page state,
// page and download-set fetches against the lending API, and CSV export.
package table

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/lendpanel/internal/domain"
	"github.com/simp-lee/lendpanel/internal/remote"
)

// ErrStale is returned by a fetch whose query changed while it was in flight.
// Its result is discarded.
var ErrStale = errors.New("table: result superseded by a newer query")

// Fetcher performs authenticated GETs. *remote.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, token string, req remote.Request) ([]byte, error)
}

// TokenSource returns the current bearer token, or "" when signed out.
// It is read before every fetch.
type TokenSource func() string

// Observer is notified of discarded results.
type Observer interface {
	StaleDiscarded(dataset, kind string)
}

// PageResult is the visible page.
type PageResult struct {
	Rows       []Row
	TotalCount int
}

// DownloadResult is every row matching the filter, used for export.
type DownloadResult struct {
	Rows []Row
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets the stale-result observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithQuery sets the initial state, typically from QueryFromValues.
func WithQuery(q Query) Option {
	return func(c *Controller) { c.query = q }
}

// Controller owns the state of one table instance.
//
// Every state change bumps a generation counter. A fetch records the
// generation it started under and applies its result only if no change
// happened in the meantime.
type Controller struct {
	cfg      Config
	fetcher  Fetcher
	token    TokenSource
	logger   *slog.Logger
	observer Observer

	mu              sync.Mutex
	query           Query
	generation      uint64
	page            PageResult
	download        DownloadResult
	pageLoading     int
	downloadLoading int
}

// NewController creates a Controller for cfg.
func NewController(cfg Config, fetcher Fetcher, token TokenSource, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg,
		fetcher: fetcher,
		token:   token,
		logger:  slog.Default(),
		query:   NewQuery(cfg.pageSize()),
		page:    PageResult{Rows: []Row{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.query.PageSize <= 0 {
		c.query.PageSize = cfg.pageSize()
	}
	if c.query.PageNo == 0 {
		c.query.PageNo = 1
	}
	c.logger = c.logger.With(slog.String("table", cfg.Name))
	return c
}

// Config returns the table configuration.
func (c *Controller) Config() Config { return c.cfg }

// Query returns a snapshot of the current state.
func (c *Controller) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Page returns the last applied page.
func (c *Controller) Page() PageResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Download returns the last applied download set.
func (c *Controller) Download() DownloadResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.download
}

// Pagination derives navigation from the current state and page.
func (c *Controller) Pagination() Pagination {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewPagination(c.query, c.page.TotalCount)
}

func (c *Controller) PageLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLoading > 0
}

func (c *Controller) DownloadLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloadLoading > 0
}

// SetPage moves to page n.
func (c *Controller) SetPage(n int) {
	c.update(func(q *Query) { q.SetPage(n) })
}

// SetSearchQuery stages s. The active query is unchanged until CommitSearch.
func (c *Controller) SetSearchQuery(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query.SetSearchQuery(s)
}

// CommitSearch activates the staged search and returns to page 1.
func (c *Controller) CommitSearch() {
	c.update(func(q *Query) { q.CommitSearch() })
}

func (c *Controller) SetStartDate(d string) {
	c.update(func(q *Query) { q.SetStartDate(d) })
}

func (c *Controller) SetEndDate(d string) {
	c.update(func(q *Query) { q.SetEndDate(d) })
}

func (c *Controller) update(fn func(*Query)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.query)
	c.generation++
}

// FetchPage loads the visible page for the current state. On failure the
// previous page is kept and the error is returned for the caller to surface.
func (c *Controller) FetchPage(ctx context.Context) (PageResult, error) {
	token := c.currentToken()
	if token == "" {
		return PageResult{}, domain.ErrUnauthorized
	}

	c.mu.Lock()
	q, gen := c.query, c.generation
	c.pageLoading++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pageLoading--
		c.mu.Unlock()
	}()

	req := c.cfg.PageRequest(q)
	body, err := c.fetcher.Get(ctx, token, req)
	if err != nil {
		c.logger.WarnContext(ctx, "page fetch failed",
			slog.String("source", req.Kind),
			slog.String("error", err.Error()),
		)
		return PageResult{}, err
	}
	env, err := remote.DecodeRows(body, c.cfg.labels()...)
	if err != nil {
		c.logger.WarnContext(ctx, "page decode failed",
			slog.String("source", req.Kind),
			slog.String("error", err.Error()),
		)
		return PageResult{}, err
	}

	result := pageFrom(q, env)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.discard(ctx, req.Kind)
		return PageResult{}, ErrStale
	}
	c.page = result
	return result, nil
}

// FetchDownloadSet loads every row matching the current filter.
func (c *Controller) FetchDownloadSet(ctx context.Context) (DownloadResult, error) {
	token := c.currentToken()
	if token == "" {
		return DownloadResult{}, domain.ErrUnauthorized
	}

	c.mu.Lock()
	q, gen := c.query, c.generation
	c.downloadLoading++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.downloadLoading--
		c.mu.Unlock()
	}()

	req := c.cfg.DownloadRequest(q)
	body, err := c.fetcher.Get(ctx, token, req)
	if err != nil {
		c.logger.WarnContext(ctx, "download fetch failed",
			slog.String("source", req.Kind),
			slog.String("error", err.Error()),
		)
		return DownloadResult{}, err
	}
	env, err := remote.DecodeRows(body, c.cfg.labels()...)
	if err != nil {
		c.logger.WarnContext(ctx, "download decode failed",
			slog.String("source", req.Kind),
			slog.String("error", err.Error()),
		)
		return DownloadResult{}, err
	}

	result := DownloadResult{Rows: toRows(env.Rows)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.discard(ctx, req.Kind)
		return DownloadResult{}, ErrStale
	}
	c.download = result
	return result, nil
}

// FetchRow loads one record for the detail view. It does not touch the
// page or download state.
func (c *Controller) FetchRow(ctx context.Context, id string) (Row, error) {
	token := c.currentToken()
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "id is required", nil)
	}

	req := c.cfg.DetailRequest(id)
	body, err := c.fetcher.Get(ctx, token, req)
	if err != nil {
		c.logger.WarnContext(ctx, "row fetch failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	m, err := remote.DecodeRow(body)
	if err != nil {
		return nil, err
	}
	return Row(m), nil
}

// Refresh fetches the page and the download set concurrently for the same
// state. The first error cancels the other fetch.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.currentToken() == "" {
		return domain.ErrUnauthorized
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.FetchPage(gctx)
		return err
	})
	g.Go(func() error {
		_, err := c.FetchDownloadSet(gctx)
		return err
	})
	return g.Wait()
}

// ExportCSV writes the current download set as CSV. An empty column set or
// download set is logged and reported as ErrNothingToExport; w is untouched.
func (c *Controller) ExportCSV(ctx context.Context, w io.Writer) error {
	rows := c.Download().Rows
	if err := WriteCSV(w, c.cfg.Columns, rows); err != nil {
		if errors.Is(err, ErrNothingToExport) {
			c.logger.ErrorContext(ctx, "csv export aborted",
				slog.String("filename", c.cfg.Filename),
				slog.Int("columns", len(c.cfg.Columns)),
				slog.Int("rows", len(rows)),
			)
		}
		return err
	}
	return nil
}

func (c *Controller) currentToken() string {
	if c.token == nil {
		return ""
	}
	return strings.TrimSpace(c.token())
}

// discard must be called with c.mu held.
func (c *Controller) discard(ctx context.Context, kind string) {
	c.logger.DebugContext(ctx, "discarding stale result", slog.String("source", kind))
	if c.observer != nil {
		c.observer.StaleDiscarded(c.cfg.Name, kind)
	}
}

// pageFrom builds the visible page. Date-range responses are unpaginated, so
// the page is sliced out of the full result.
func pageFrom(q Query, env remote.Envelope) PageResult {
	rows := toRows(env.Rows)
	if SelectSource(q) == SourceDateRange {
		total := len(rows)
		start := (q.PageNo - 1) * q.PageSize
		if start < 0 || start >= total {
			return PageResult{Rows: []Row{}, TotalCount: total}
		}
		end := min(start+q.PageSize, total)
		return PageResult{Rows: rows[start:end], TotalCount: total}
	}

	total := len(rows)
	if env.HasCount {
		total = env.Count
	}
	return PageResult{Rows: rows, TotalCount: total}
}
