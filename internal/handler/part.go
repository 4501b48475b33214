package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkarimv/vehicle-service-center/internal/model"
	"github.com/mkarimv/vehicle-service-center/internal/repository"
)

// PartHandler covers the staff parts surface: catalogue CRUD and
// restocking.  Stock consumption happens exclusively through conflict
// resolution and is not reachable from here.
type PartHandler struct {
	Parts *repository.PartRepo
}

func NewPartHandler(parts *repository.PartRepo) *PartHandler {
	if parts == nil {
		panic("nil repository passed to NewPartHandler")
	}
	return &PartHandler{Parts: parts}
}

// Create handles POST /v1/staff/parts.
func (h *PartHandler) Create(c echo.Context) error {
	var body struct {
		PartNumber     string `json:"part_number"`
		Name           string `json:"name"`
		CurrentStock   int    `json:"current_stock"`
		UnitPriceCents uint32 `json:"unit_price_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.PartNumber = strings.TrimSpace(body.PartNumber)
	body.Name = strings.TrimSpace(body.Name)
	if body.PartNumber == "" || body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "part_number and name are required"})
	}
	if body.CurrentStock < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_stock cannot be negative"})
	}

	p := &model.Part{
		PartNumber:     body.PartNumber,
		Name:           body.Name,
		CurrentStock:   body.CurrentStock,
		UnitPriceCents: body.UnitPriceCents,
	}
	if err := h.Parts.Create(c.Request().Context(), p); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "part number already exists"})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// List handles GET /v1/staff/parts.
func (h *PartHandler) List(c echo.Context) error {
	parts, err := h.Parts.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"parts": parts})
}

// Get handles GET /v1/staff/parts/:id.
func (h *PartHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid part id"})
	}
	p, err := h.Parts.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Restock handles POST /v1/staff/parts/:id/restock.  Restocking only
// adds stock; deferred demand stays deferred until detection or a staff
// decision picks it up again.
func (h *PartHandler) Restock(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid part id"})
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil || body.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
	}
	ctx := c.Request().Context()
	if err := h.Parts.Restock(ctx, id, body.Quantity); err != nil {
		return respondError(c, err)
	}
	p, err := h.Parts.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
