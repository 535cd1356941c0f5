package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/styledecor/internal/model"
	"github.com/iliyamo/styledecor/internal/service"
)

// CatalogHandler serves services and service centers.
type CatalogHandler struct {
	Catalog *service.CatalogEngine
}

func NewCatalogHandler(c *service.CatalogEngine) *CatalogHandler {
	return &CatalogHandler{Catalog: c}
}

type serviceReq struct {
	Name        string          `json:"service_name"`
	Description string          `json:"description"`
	Category    string          `json:"service_category"`
	Cost        decimal.Decimal `json:"cost"`
	Unit        string          `json:"unit"`
	ImageURL    string          `json:"image"`
}

func (r serviceReq) input() service.ServiceInput {
	return service.ServiceInput{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Cost:        r.Cost,
		Unit:        r.Unit,
		ImageURL:    r.ImageURL,
	}
}

// ListServices handles GET /v1/services?category=.
func (h *CatalogHandler) ListServices(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Catalog.ListServices(ctx, c.QueryParam("category"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetService handles GET /v1/services/:id.
func (h *CatalogHandler) GetService(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Catalog.GetService(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// CreateService handles POST /v1/admin/services.
func (h *CatalogHandler) CreateService(c echo.Context) error {
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Catalog.CreateService(ctx, req.input(), principal(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateService handles PUT /v1/admin/services/:id.
func (h *CatalogHandler) UpdateService(c echo.Context) error {
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Catalog.UpdateService(ctx, c.Param("id"), req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// DeleteService handles DELETE /v1/admin/services/:id.
func (h *CatalogHandler) DeleteService(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Catalog.DeleteService(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCenters handles GET /v1/service-centers?city=.
func (h *CatalogHandler) ListCenters(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Catalog.ListCenters(ctx, c.QueryParam("city"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type centerReq struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// CreateCenter handles POST /v1/admin/service-centers.
func (h *CatalogHandler) CreateCenter(c echo.Context) error {
	var req centerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sc, err := h.Catalog.CreateCenter(ctx, &model.ServiceCenter{
		Name: req.Name, City: req.City, Address: req.Address, Phone: req.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sc)
}

// DeleteCenter handles DELETE /v1/admin/service-centers/:id.
func (h *CatalogHandler) DeleteCenter(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Catalog.DeleteCenter(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
