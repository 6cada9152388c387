package export

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/lendpanel/internal/domain"
	"github.com/simp-lee/lendpanel/internal/middleware"
	"github.com/simp-lee/lendpanel/internal/pkg"
)

// ExportHandler serves the export audit trail as JSON and HTML.
type ExportHandler struct {
	svc domain.ExportService
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(svc domain.ExportService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// List handles GET /api/v1/exports.
func (h *ExportHandler) List(c *gin.Context) {
	result, err := h.svc.ListExports(c.Request.Context(), pkg.ParsePageRequest(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.List(c, result)
}

// Get handles GET /api/v1/exports/:id.
func (h *ExportHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetExport(c.Request.Context(), c.Param("id"))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, rec)
}

// ListPage renders the export history.
// GET /exports
func (h *ExportHandler) ListPage(c *gin.Context) {
	req := pkg.ParsePageRequest(c)
	result, err := h.svc.ListExports(c.Request.Context(), req)
	if err != nil {
		if pkg.IsHTMX(c) {
			pkg.Toast(c, "Could not load the export history.", pkg.ToastError)
			pkg.KeepContent(c)
			c.Status(http.StatusOK)
			return
		}
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	data := gin.H{
		"Title":      "Exports",
		"Active":     "exports",
		"Exports":    result.Items,
		"Pagination": result,
		"BaseURL":    "/exports",
		"Dataset":    req.Filter["dataset"],
		"CSRFToken":  middleware.GetCSRFToken(c),
	}
	if pkg.IsHTMX(c) {
		pkg.PushURL(c, c.Request.URL.RequestURI())
		c.HTML(http.StatusOK, "exports/table.html", data)
		return
	}
	c.HTML(http.StatusOK, "exports/list.html", data)
}
