package export

import "github.com/gin-gonic/gin"

// ExportModule implements the app.Module interface for the export audit trail.
type ExportModule struct {
	handler *ExportHandler
}

// NewModule creates an ExportModule. Panics if h is nil.
func NewModule(h *ExportHandler) *ExportModule {
	if h == nil {
		panic("export.NewModule: handler must not be nil")
	}
	return &ExportModule{handler: h}
}

// RegisterRoutes registers export API and page routes.
func (m *ExportModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	api.GET("/exports", m.handler.List)
	api.GET("/exports/:id", m.handler.Get)

	pages.GET("/exports", m.handler.ListPage)
}
