package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/huelab/huelab-go/internal/taxonomy"
)

func (c *Controller) initCatalogRoutes() {
	g := c.Group.Group("/catalog")
	g.GET("", c.GetCatalog)
	g.PUT("", c.ImportCatalog)
}

// GetCatalog handles GET /catalog, returning the normalized subtype catalog.
func (c *Controller) GetCatalog(ctx echo.Context) error {
	catalog, err := c.DS.GetSubtypes()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load subtype catalog", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"subtypes": catalog,
		"count":    len(catalog),
	})
}

// ImportCatalogRequest replaces or extends the subtype catalog.
type ImportCatalogRequest struct {
	Subtypes []taxonomy.Subtype `json:"subtypes"`
}

// ImportCatalog handles PUT /catalog. Subtypes are normalized and validated
// before they are upserted by slug.
func (c *Controller) ImportCatalog(ctx echo.Context) error {
	req := &ImportCatalogRequest{}
	if err := ctx.Bind(req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}
	if len(req.Subtypes) == 0 {
		return c.HandleError(ctx, nil, "Catalog import requires at least one subtype", http.StatusBadRequest)
	}

	catalog := taxonomy.Catalog(req.Subtypes).Normalize()
	if err := catalog.Validate(); err != nil {
		return c.HandleError(ctx, err, "Invalid subtype catalog", http.StatusBadRequest)
	}
	if err := c.DS.SaveSubtypes(catalog); err != nil {
		return c.HandleError(ctx, err, "Failed to save subtype catalog", http.StatusInternalServerError)
	}

	c.apiLogger.Info("Subtype catalog imported", "subtypes", len(catalog))
	return ctx.JSON(http.StatusOK, map[string]any{"imported": len(catalog)})
}
