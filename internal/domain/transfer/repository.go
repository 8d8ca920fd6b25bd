package transfer

import (
	"context"
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain"
)

// Repository defines storage operations for stock transfers.
type Repository interface {
	Create(ctx context.Context, t *StockTransfer) error
	GetByID(ctx context.Context, transferID id.ID) (*StockTransfer, error)
	GetByNumber(ctx context.Context, number string) (*StockTransfer, error)

	// Update persists the header with an optimistic version check and
	// increments t.Version on success.
	Update(ctx context.Context, t *StockTransfer) error

	GetItems(ctx context.Context, transferID id.ID) ([]TransferItem, error)
	SaveItems(ctx context.Context, transferID id.ID, items []TransferItem) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockTransfer], error)

	// GetForUpdate loads a transfer header with a row lock.
	// Must run inside a transaction.
	GetForUpdate(ctx context.Context, transferID id.ID) (*StockTransfer, error)
}

// ListFilter for filtering transfers.
type ListFilter struct {
	domain.ListFilter

	Status          *Status
	FromWarehouseID *id.ID
	ToWarehouseID   *id.ID
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
