package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// AllocationHandler handles FIFO allocation previews.
type AllocationHandler struct {
	*BaseHandler
	service *allocation.Service
}

// NewAllocationHandler creates a new allocation handler.
func NewAllocationHandler(base *BaseHandler, service *allocation.Service) *AllocationHandler {
	return &AllocationHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Preview plans a FIFO allocation against current stock without applying it.
// The result is advisory: concurrent operations can invalidate it.
// POST /api/v1/allocations/preview
func (h *AllocationHandler) Preview(c *gin.Context) {
	var req dto.AllocationPreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}

	plan, err := h.service.Preview(c.Request.Context(),
		id.MustParse(req.ProductID), id.MustParse(req.WarehouseID), req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromPlan(plan))
}

// RegisterRoutes registers allocation routes.
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/preview", h.Preview)
}
