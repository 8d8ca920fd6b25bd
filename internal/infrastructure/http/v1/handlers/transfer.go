package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/internal/domain/transfer"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles HTTP requests for stock transfers.
type TransferHandler struct {
	*BaseHandler
	service   *transfer.Service
	movements *movement.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service, movements *movement.Service) *TransferHandler {
	return &TransferHandler{
		BaseHandler: base,
		service:     service,
		movements:   movements,
	}
}

// Create registers a pending transfer.
// POST /api/v1/transfers
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	t := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), t); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromTransfer(t))
}

// Get retrieves a transfer with its items.
// GET /api/v1/transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transferID, ok := h.parseID(c)
	if !ok {
		return
	}

	t, err := h.service.GetByID(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTransfer(t))
}

// List retrieves transfers with filtering.
// GET /api/v1/transfers
func (h *TransferHandler) List(c *gin.Context) {
	filter := transfer.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "created_at DESC")

	if status := c.Query("status"); status != "" {
		val := transfer.Status(status)
		filter.Status = &val
	}
	if warehouseID := c.Query("fromWarehouseId"); warehouseID != "" {
		if parsed, err := id.Parse(warehouseID); err == nil {
			filter.FromWarehouseID = &parsed
		}
	}
	if warehouseID := c.Query("toWarehouseId"); warehouseID != "" {
		if parsed, err := id.Parse(warehouseID); err == nil {
			filter.ToWarehouseID = &parsed
		}
	}
	if from := c.Query("createdFrom"); from != "" {
		if parsed, err := time.Parse(time.RFC3339, from); err == nil {
			filter.CreatedFrom = &parsed
		}
	}
	if to := c.Query("createdTo"); to != "" {
		if parsed, err := time.Parse(time.RFC3339, to); err == nil {
			filter.CreatedTo = &parsed
		}
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.TransferResponse, len(result.Items))
	for i, t := range result.Items {
		items[i] = dto.FromTransfer(t)
	}

	c.JSON(http.StatusOK, dto.ListResponse[*dto.TransferResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Ship allocates every item FIFO and moves the transfer to in_transit.
// POST /api/v1/transfers/:id/ship
func (h *TransferHandler) Ship(c *gin.Context) {
	transferID, ok := h.parseID(c)
	if !ok {
		return
	}

	t, err := h.service.Ship(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(t))
}

// Receive completes an in_transit transfer. A body is optional; items absent
// from it are received at their full shipped quantity.
// POST /api/v1/transfers/:id/receive
func (h *TransferHandler) Receive(c *gin.Context) {
	transferID, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.ReceiveTransferRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}

	t, err := h.service.Receive(c.Request.Context(), transferID, req.ToMap())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(t))
}

// Cancel aborts a pending or in_transit transfer.
// POST /api/v1/transfers/:id/cancel
func (h *TransferHandler) Cancel(c *gin.Context) {
	transferID, ok := h.parseID(c)
	if !ok {
		return
	}

	t, err := h.service.Cancel(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(t))
}

// Movements returns all movements produced by a transfer.
// GET /api/v1/transfers/:id/movements
func (h *TransferHandler) Movements(c *gin.Context) {
	transferID, ok := h.parseID(c)
	if !ok {
		return
	}

	movements, err := h.movements.ByReference(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": dto.FromMovements(movements)})
}

// RegisterRoutes registers transfer routes.
func (h *TransferHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/ship", h.Ship)
	rg.POST("/:id/receive", h.Receive)
	rg.POST("/:id/cancel", h.Cancel)
	rg.GET("/:id/movements", h.Movements)
}

func (h *TransferHandler) parseID(c *gin.Context) (id.ID, bool) {
	transferID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return id.Nil(), false
	}
	return transferID, true
}
