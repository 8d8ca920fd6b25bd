// Package lot provides the lot ledger: per-lot stock quantities with
// reservations, optimistic locking and status lifecycle.
package lot

import (
	"context"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Status is the lifecycle state of a lot.
type Status string

const (
	// StatusAvailable lots participate in allocation.
	StatusAvailable Status = "available"
	// StatusConsumed is terminal: the lot was drained to zero through issuance.
	StatusConsumed Status = "consumed"
	// StatusExpired lots are excluded from allocation.
	StatusExpired Status = "expired"
	// StatusQuarantined lots are excluded from allocation pending inspection.
	StatusQuarantined Status = "quarantined"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusConsumed, StatusExpired, StatusQuarantined:
		return true
	}
	return false
}

// Lot is a batch of stock received together, tracked separately for FIFO
// allocation. Invariant: 0 <= ReservedQuantity <= Quantity.
type Lot struct {
	entity.Base

	// LotNumber is unique per product per receipt month (LOT-YYYYMM-NNNN).
	LotNumber string `db:"lot_number" json:"lotNumber"`

	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`

	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`

	Status Status `db:"status" json:"status"`

	ReceivedDate time.Time  `db:"received_date" json:"receivedDate"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	CostPerUnit types.Money `db:"cost_per_unit" json:"costPerUnit"`
	Currency    string      `db:"currency" json:"currency,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`
}

// New creates a lot with defaults: zero reservation, status available.
func New(productID, warehouseID id.ID) *Lot {
	return &Lot{
		Base:         entity.NewBase(),
		ProductID:    productID,
		WarehouseID:  warehouseID,
		Status:       StatusAvailable,
		ReceivedDate: time.Now().UTC(),
		CostPerUnit:  types.ZeroMoney(),
	}
}

// AvailableQuantity is the unreserved on-hand quantity.
func (l *Lot) AvailableQuantity() types.Quantity {
	return l.Quantity - l.ReservedQuantity
}

// Validate implements basic field and invariant checks.
func (l *Lot) Validate(ctx context.Context) error {
	if id.IsNil(l.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if id.IsNil(l.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if l.Quantity.IsNegative() {
		return apperror.NewValidation("quantity must not be negative").
			WithDetail("field", "quantity")
	}
	if !l.Status.Valid() {
		return apperror.NewValidation("unknown status").
			WithDetail("field", "status").
			WithDetail("status", string(l.Status))
	}
	if l.ReservedQuantity.IsNegative() || l.ReservedQuantity > l.Quantity {
		return apperror.NewInvariantViolation("reserved quantity must stay within on-hand quantity").
			WithDetail("quantity", l.Quantity.String()).
			WithDetail("reserved", l.ReservedQuantity.String())
	}
	return nil
}

// Reserve earmarks qty without removing it from stock.
func (l *Lot) Reserve(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("reserve quantity must be positive")
	}
	if qty > l.AvailableQuantity() {
		return apperror.NewInsufficientAvailable(
			l.ID.String(), qty.Float64(), l.AvailableQuantity().Float64())
	}
	l.ReservedQuantity += qty
	l.Touch()
	return nil
}

// Release returns a previously reserved qty to the available pool.
func (l *Lot) Release(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("release quantity must be positive")
	}
	if qty > l.ReservedQuantity {
		return apperror.NewOverRelease(
			l.ID.String(), qty.Float64(), l.ReservedQuantity.Float64())
	}
	l.ReservedQuantity -= qty
	l.Touch()
	return nil
}

// Consume removes qty from stock. Reserved quantity is reduced by up to qty,
// so consuming reserved stock releases the reservation implicitly.
// A lot drained to zero becomes consumed (terminal).
func (l *Lot) Consume(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("consume quantity must be positive")
	}
	if qty > l.Quantity {
		return apperror.NewInsufficientQuantity(
			l.ID.String(), qty.Float64(), l.Quantity.Float64())
	}
	l.Quantity -= qty
	l.ReservedQuantity -= qty.Min(l.ReservedQuantity)
	if l.Quantity.IsZero() {
		l.Status = StatusConsumed
	}
	l.Touch()
	return nil
}

// Deduct removes qty from the unreserved portion of the lot. Unlike Consume
// it never touches ReservedQuantity, so holds placed by other callers survive.
// Used when applying allocation plans, which only cover available stock.
func (l *Lot) Deduct(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("deduct quantity must be positive")
	}
	if qty > l.AvailableQuantity() {
		return apperror.NewInsufficientAvailable(
			l.ID.String(), qty.Float64(), l.AvailableQuantity().Float64())
	}
	l.Quantity -= qty
	if l.Quantity.IsZero() {
		l.Status = StatusConsumed
	}
	l.Touch()
	return nil
}

// Restock adds qty back to the lot, reviving a consumed lot.
// Used for cancellation returns into an existing lot.
func (l *Lot) Restock(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("restock quantity must be positive")
	}
	l.Quantity += qty
	if l.Status == StatusConsumed {
		l.Status = StatusAvailable
	}
	l.Touch()
	return nil
}

// Allocatable reports whether the lot can participate in FIFO allocation.
func (l *Lot) Allocatable() bool {
	return l.Status == StatusAvailable && l.AvailableQuantity().IsPositive()
}
