package lot

import (
	"context"
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain"
)

// Repository defines storage operations for lots.
type Repository interface {
	Create(ctx context.Context, l *Lot) error
	GetByID(ctx context.Context, lotID id.ID) (*Lot, error)
	GetByNumber(ctx context.Context, lotNumber string) (*Lot, error)

	// Update persists l with an optimistic version check and increments
	// l.Version on success. Returns ConcurrentModification on a stale version.
	Update(ctx context.Context, l *Lot) error

	// Delete removes the lot row. Movement references are left orphaned.
	Delete(ctx context.Context, lotID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error)

	// GetForUpdate loads a lot with a row lock. Must run inside a transaction.
	GetForUpdate(ctx context.Context, lotID id.ID) (*Lot, error)

	// ListAllocatableForUpdate loads allocatable lots of a product in a
	// warehouse, row-locked, ordered by received_date then lot_number.
	// Must run inside a transaction.
	ListAllocatableForUpdate(ctx context.Context, productID, warehouseID id.ID) ([]*Lot, error)

	// FindRestockTarget picks an available lot of the product in the warehouse
	// to receive returned stock, row-locked, or returns NotFound.
	// Must run inside a transaction.
	FindRestockTarget(ctx context.Context, productID, warehouseID id.ID) (*Lot, error)
}

// ListFilter for filtering lots.
type ListFilter struct {
	domain.ListFilter

	ProductID   *id.ID
	WarehouseID *id.ID
	Status      *Status

	ReceivedFrom *time.Time
	ReceivedTo   *time.Time
}
