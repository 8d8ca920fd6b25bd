package dto

import (
	"time"

	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/movement"
)

// MovementResponse contains movement log fields.
// LotID is empty for transit discrepancy records.
type MovementResponse struct {
	ID              string         `json:"id"`
	LotID           string         `json:"lotId,omitempty"`
	Type            string         `json:"type"`
	Quantity        types.Quantity `json:"quantity"`
	Reason          string         `json:"reason,omitempty"`
	FromWarehouseID string         `json:"fromWarehouseId,omitempty"`
	ToWarehouseID   string         `json:"toWarehouseId,omitempty"`
	ReferenceType   string         `json:"referenceType,omitempty"`
	ReferenceID     string         `json:"referenceId,omitempty"`
	PerformedBy     string         `json:"performedBy,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// FromMovement creates MovementResponse from a movement.
func FromMovement(m *movement.LotMovement) *MovementResponse {
	resp := &MovementResponse{
		ID:            m.ID.String(),
		Type:          string(m.Type),
		Quantity:      m.Quantity,
		Reason:        m.Reason,
		ReferenceType: m.ReferenceType,
		PerformedBy:   m.PerformedBy,
		CreatedAt:     m.CreatedAt,
	}
	if m.LotID != nil {
		resp.LotID = m.LotID.String()
	}
	if m.FromWarehouseID != nil {
		resp.FromWarehouseID = m.FromWarehouseID.String()
	}
	if m.ToWarehouseID != nil {
		resp.ToWarehouseID = m.ToWarehouseID.String()
	}
	if m.ReferenceID != nil {
		resp.ReferenceID = m.ReferenceID.String()
	}
	return resp
}

// FromMovements maps a movement slice to responses.
func FromMovements(movements []*movement.LotMovement) []*MovementResponse {
	items := make([]*MovementResponse, len(movements))
	for i, m := range movements {
		items[i] = FromMovement(m)
	}
	return items
}
