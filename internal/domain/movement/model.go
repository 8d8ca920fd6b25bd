// Package movement provides the append-only lot movement log.
// Every stock change writes a movement row; the log is the audit trail that
// external reconciliation jobs read.
package movement

import (
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Type classifies a stock movement.
type Type string

const (
	// TypeReceive records stock entering a warehouse (positive quantity).
	TypeReceive Type = "receive"
	// TypeIssue records stock leaving through consumption (negative quantity).
	TypeIssue Type = "issue"
	// TypeAdjust records a manual or compensating correction (either sign).
	TypeAdjust Type = "adjust"
	// TypeTransfer records stock moved between warehouses
	// (negative at source, positive at destination).
	TypeTransfer Type = "transfer"
)

// Reference types linking movements back to the operation that produced them.
const (
	ReferenceTransfer = "transfer"
	ReferenceLot      = "lot"
)

// LotMovement is a single entry in the movement log.
//
// LotID is nullable: transit discrepancy records describe stock lost between
// warehouses and are not attached to any lot.
type LotMovement struct {
	ID    id.ID  `db:"id" json:"id"`
	LotID *id.ID `db:"lot_id" json:"lotId,omitempty"`

	Type     Type           `db:"movement_type" json:"type"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Reason   string         `db:"reason" json:"reason,omitempty"`

	FromWarehouseID *id.ID `db:"from_warehouse_id" json:"fromWarehouseId,omitempty"`
	ToWarehouseID   *id.ID `db:"to_warehouse_id" json:"toWarehouseId,omitempty"`

	ReferenceType string `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   *id.ID `db:"reference_id" json:"referenceId,omitempty"`

	PerformedBy string    `db:"performed_by" json:"performedBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// New creates a movement with a fresh id and timestamp.
func New(movementType Type, quantity types.Quantity) *LotMovement {
	return &LotMovement{
		ID:        id.New(),
		Type:      movementType,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
}

// ForLot attaches the movement to a lot.
func (m *LotMovement) ForLot(lotID id.ID) *LotMovement {
	m.LotID = &lotID
	return m
}

// WithReason sets the free-form reason.
func (m *LotMovement) WithReason(reason string) *LotMovement {
	m.Reason = reason
	return m
}

// WithWarehouses sets the source and destination warehouses.
func (m *LotMovement) WithWarehouses(from, to *id.ID) *LotMovement {
	m.FromWarehouseID = from
	m.ToWarehouseID = to
	return m
}

// WithReference links the movement to the operation that produced it.
func (m *LotMovement) WithReference(refType string, refID id.ID) *LotMovement {
	m.ReferenceType = refType
	m.ReferenceID = &refID
	return m
}

// By sets the acting user.
func (m *LotMovement) By(actorID string) *LotMovement {
	m.PerformedBy = actorID
	return m
}
