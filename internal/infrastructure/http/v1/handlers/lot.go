package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain"
	"lotkeeper/internal/domain/lot"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// LotHandler handles HTTP requests for the lot ledger.
type LotHandler struct {
	*BaseHandler
	service   *lot.Service
	movements *movement.Service
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, service *lot.Service, movements *movement.Service) *LotHandler {
	return &LotHandler{
		BaseHandler: base,
		service:     service,
		movements:   movements,
	}
}

// Create registers a new lot.
// POST /api/v1/lots
func (h *LotHandler) Create(c *gin.Context) {
	var req dto.CreateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), l); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromLot(l))
}

// Get retrieves a lot by id.
// GET /api/v1/lots/:id
func (h *LotHandler) Get(c *gin.Context) {
	lotID, ok := h.parseID(c)
	if !ok {
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLot(l))
}

// GetByNumber retrieves a lot by lot number.
// GET /api/v1/lots/by-number/:number
func (h *LotHandler) GetByNumber(c *gin.Context) {
	l, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromLot(l))
}

// List retrieves lots with filtering.
// GET /api/v1/lots
func (h *LotHandler) List(c *gin.Context) {
	filter := lot.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "received_date")

	if productID := c.Query("productId"); productID != "" {
		if parsed, err := id.Parse(productID); err == nil {
			filter.ProductID = &parsed
		}
	}
	if warehouseID := c.Query("warehouseId"); warehouseID != "" {
		if parsed, err := id.Parse(warehouseID); err == nil {
			filter.WarehouseID = &parsed
		}
	}
	if status := c.Query("status"); status != "" {
		val := lot.Status(status)
		filter.Status = &val
	}
	if from := c.Query("receivedFrom"); from != "" {
		if parsed, err := time.Parse(time.RFC3339, from); err == nil {
			filter.ReceivedFrom = &parsed
		}
	}
	if to := c.Query("receivedTo"); to != "" {
		if parsed, err := time.Parse(time.RFC3339, to); err == nil {
			filter.ReceivedTo = &parsed
		}
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.LotResponse, len(result.Items))
	for i, l := range result.Items {
		items[i] = dto.FromLot(l)
	}

	c.JSON(http.StatusOK, dto.ListResponse[*dto.LotResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Update applies a partial update to a lot.
// PATCH /api/v1/lots/:id
func (h *LotHandler) Update(c *gin.Context) {
	lotID, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.UpdateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := h.service.Update(c.Request.Context(), lotID, req.ToPatch())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLot(l))
}

// Delete removes a lot.
// DELETE /api/v1/lots/:id
func (h *LotHandler) Delete(c *gin.Context) {
	lotID, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), lotID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Reserve earmarks quantity on a lot.
// POST /api/v1/lots/:id/reserve
func (h *LotHandler) Reserve(c *gin.Context) {
	h.quantityOp(c, h.service.Reserve)
}

// Release returns reserved quantity to the available pool.
// POST /api/v1/lots/:id/release
func (h *LotHandler) Release(c *gin.Context) {
	h.quantityOp(c, h.service.Release)
}

// Consume removes quantity from stock.
// POST /api/v1/lots/:id/consume
func (h *LotHandler) Consume(c *gin.Context) {
	lotID, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.ConsumeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := h.service.Consume(c.Request.Context(), lotID, req.Quantity, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLot(l))
}

// Movements returns the movement history of a lot.
// GET /api/v1/lots/:id/movements
func (h *LotHandler) Movements(c *gin.Context) {
	lotID, ok := h.parseID(c)
	if !ok {
		return
	}

	movements, err := h.movements.ByLot(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.FromMovements(movements)})
}

func (h *LotHandler) quantityOp(c *gin.Context, op func(ctx context.Context, lotID id.ID, qty types.Quantity) (*lot.Lot, error)) {
	lotID, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.QuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	l, err := op(c.Request.Context(), lotID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLot(l))
}

// RegisterRoutes registers lot routes.
func (h *LotHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/by-number/:number", h.GetByNumber)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/reserve", h.Reserve)
	rg.POST("/:id/release", h.Release)
	rg.POST("/:id/consume", h.Consume)
	rg.GET("/:id/movements", h.Movements)
}

func (h *LotHandler) parseID(c *gin.Context) (id.ID, bool) {
	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return id.Nil(), false
	}
	return lotID, true
}
