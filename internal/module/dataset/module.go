package dataset

import "github.com/gin-gonic/gin"

// Module wires the dataset handler into the router.
type Module struct {
	handler  *DatasetHandler
	registry *Registry
}

// NewModule creates the dataset module.
func NewModule(reg *Registry, h *DatasetHandler) *Module {
	return &Module{handler: h, registry: reg}
}

// Registry returns the datasets served by this module.
func (m *Module) Registry() *Registry { return m.registry }

// RegisterRoutes registers the JSON API on api and the HTML pages on pages.
// Both groups are expected to require a signed-in user.
func (m *Module) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	api.GET("/tables", m.handler.APIIndex)
	for _, cfg := range m.registry.All() {
		api.GET("/tables/"+cfg.Name, m.handler.API(cfg))
		api.GET("/tables/"+cfg.Name+"/:id", m.handler.APIDetail(cfg))

		pages.GET("/"+cfg.Name, m.handler.Page(cfg))
		pages.GET("/"+cfg.Name+"/export", m.handler.Export(cfg))
		pages.GET("/"+cfg.Name+"/:id", m.handler.Detail(cfg))
	}
}
