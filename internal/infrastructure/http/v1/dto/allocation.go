package dto

import (
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
)

// AllocationPreviewRequest plans a FIFO allocation without applying it.
type AllocationPreviewRequest struct {
	ProductID   string         `json:"productId" binding:"required,uuid"`
	WarehouseID string         `json:"warehouseId" binding:"required,uuid"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
}

// AllocationLineResponse is one lot's contribution to a plan.
type AllocationLineResponse struct {
	LotID     string         `json:"lotId"`
	LotNumber string         `json:"lotNumber"`
	Quantity  types.Quantity `json:"quantity"`
}

// AllocationPlanResponse is a FIFO plan, possibly partial.
type AllocationPlanResponse struct {
	Lines     []AllocationLineResponse `json:"lines"`
	Requested types.Quantity           `json:"requested"`
	Total     types.Quantity           `json:"total"`
	Shortfall types.Quantity           `json:"shortfall"`
	Complete  bool                     `json:"complete"`
}

// FromPlan creates AllocationPlanResponse from a plan.
func FromPlan(p allocation.Plan) AllocationPlanResponse {
	lines := make([]AllocationLineResponse, len(p.Lines))
	for i, line := range p.Lines {
		lines[i] = AllocationLineResponse{
			LotID:     line.LotID.String(),
			LotNumber: line.LotNumber,
			Quantity:  line.Quantity,
		}
	}
	return AllocationPlanResponse{
		Lines:     lines,
		Requested: p.Requested,
		Total:     p.Total,
		Shortfall: p.Shortfall(),
		Complete:  p.Complete(),
	}
}
