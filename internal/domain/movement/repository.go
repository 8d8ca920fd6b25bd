package movement

import (
	"context"

	"lotkeeper/internal/core/id"
)

// Repository defines storage operations for the movement log.
// The log is append-only: there is no update or delete.
type Repository interface {
	// Append inserts a movement row. Never rejects on business grounds.
	Append(ctx context.Context, m *LotMovement) error

	// ByLot returns all movements of a lot, oldest first.
	ByLot(ctx context.Context, lotID id.ID) ([]*LotMovement, error)

	// ByReference returns all movements produced by one operation
	// (e.g. a stock transfer), oldest first.
	ByReference(ctx context.Context, referenceID id.ID) ([]*LotMovement, error)
}
