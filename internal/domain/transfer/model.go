// Package transfer provides multi-step stock transfers between warehouses:
// create, ship (FIFO allocation at source), receive (new lots at destination)
// and cancel with compensating returns.
package transfer

import (
	"context"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Status is the lifecycle state of a stock transfer.
// Transitions are forward-only except cancellation:
// pending -> in_transit -> completed, with cancel allowed from
// pending and in_transit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// EntityType is the audit entity type for transfers.
const EntityType = "StockTransfer"

// StockTransfer moves stock between two warehouses in steps.
type StockTransfer struct {
	entity.Base

	// TransferNumber is sequential per year (TRF-YYYY-NNNN).
	TransferNumber string `db:"transfer_number" json:"transferNumber"`

	FromWarehouseID id.ID `db:"from_warehouse_id" json:"fromWarehouseId"`
	ToWarehouseID   id.ID `db:"to_warehouse_id" json:"toWarehouseId"`

	Status Status `db:"status" json:"status"`

	Notes     string `db:"notes" json:"notes,omitempty"`
	CreatedBy string `db:"created_by" json:"createdBy,omitempty"`

	ShippedAt  *time.Time `db:"shipped_at" json:"shippedAt,omitempty"`
	ReceivedAt *time.Time `db:"received_at" json:"receivedAt,omitempty"`

	// Table part
	Items []TransferItem `db:"-" json:"items"`
}

// TransferItem is one product line of a transfer.
// Invariants: shipped <= requested, received <= shipped.
type TransferItem struct {
	ID         id.ID `db:"id" json:"id"`
	TransferID id.ID `db:"transfer_id" json:"transferId"`

	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`

	RequestedQuantity types.Quantity `db:"requested_quantity" json:"requestedQuantity"`
	ShippedQuantity   types.Quantity `db:"shipped_quantity" json:"shippedQuantity"`
	ReceivedQuantity  types.Quantity `db:"received_quantity" json:"receivedQuantity"`

	// UnitCost is the weighted-average cost of the allocated source lots,
	// captured at ship time. Used for carry-over costing at receipt and for
	// valuing cancellation returns.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`
	Currency string      `db:"currency" json:"currency,omitempty"`
}

// New creates a pending transfer between two warehouses.
func New(fromWarehouseID, toWarehouseID id.ID) *StockTransfer {
	return &StockTransfer{
		Base:            entity.NewBase(),
		FromWarehouseID: fromWarehouseID,
		ToWarehouseID:   toWarehouseID,
		Status:          StatusPending,
		Items:           make([]TransferItem, 0),
	}
}

// AddItem appends a product line.
func (t *StockTransfer) AddItem(productID id.ID, productName string, requested types.Quantity) {
	t.Items = append(t.Items, TransferItem{
		ID:                id.New(),
		TransferID:        t.ID,
		ProductID:         productID,
		ProductName:       productName,
		RequestedQuantity: requested,
		UnitCost:          types.ZeroMoney(),
	})
}

// Validate implements basic field checks for creation.
func (t *StockTransfer) Validate(ctx context.Context) error {
	if id.IsNil(t.FromWarehouseID) {
		return apperror.NewValidation("source warehouse is required").
			WithDetail("field", "fromWarehouseId")
	}
	if id.IsNil(t.ToWarehouseID) {
		return apperror.NewValidation("destination warehouse is required").
			WithDetail("field", "toWarehouseId")
	}
	if t.FromWarehouseID == t.ToWarehouseID {
		return apperror.NewValidation("source and destination warehouses must differ")
	}
	if len(t.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	for i, item := range t.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if !item.RequestedQuantity.IsPositive() {
			return apperror.NewValidation("requested quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}
	return nil
}

// MarkShipped moves the transfer to in_transit.
func (t *StockTransfer) MarkShipped() error {
	if t.Status != StatusPending {
		return apperror.NewInvalidTransition("transfer", string(t.Status), "ship")
	}
	now := time.Now().UTC()
	t.Status = StatusInTransit
	t.ShippedAt = &now
	t.Touch()
	return nil
}

// MarkReceived moves the transfer to completed.
func (t *StockTransfer) MarkReceived() error {
	if t.Status != StatusInTransit {
		return apperror.NewInvalidTransition("transfer", string(t.Status), "receive")
	}
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.ReceivedAt = &now
	t.Touch()
	return nil
}

// MarkCancelled moves the transfer to cancelled.
// Allowed from pending and in_transit only.
func (t *StockTransfer) MarkCancelled() error {
	if t.Status != StatusPending && t.Status != StatusInTransit {
		return apperror.NewInvalidTransition("transfer", string(t.Status), "cancel")
	}
	t.Status = StatusCancelled
	t.Touch()
	return nil
}
