// Package movement_repo provides the PostgreSQL implementation of the
// movement log repository.
package movement_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const movementsTable = "lot_movements"

var movementColumns = []string{
	"id", "lot_id", "movement_type", "quantity", "reason",
	"from_warehouse_id", "to_warehouse_id",
	"reference_type", "reference_id",
	"performed_by", "created_at",
}

// MovementRepo implements movement.Repository.
// The table is append-only; there is no update or delete path.
type MovementRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewMovementRepo creates a movement repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a movement row.
func (r *MovementRepo) Append(ctx context.Context, m *movement.LotMovement) error {
	q := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(
			m.ID, m.LotID, m.Type, m.Quantity, m.Reason,
			m.FromWarehouseID, m.ToWarehouseID,
			m.ReferenceType, m.ReferenceID,
			m.PerformedBy, m.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ByLot returns all movements of a lot, oldest first.
func (r *MovementRepo) ByLot(ctx context.Context, lotID id.ID) ([]*movement.LotMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"lot_id": lotID}).
		OrderBy("created_at", "id")

	return r.selectMany(ctx, q)
}

// ByReference returns all movements produced by one operation, oldest first.
func (r *MovementRepo) ByReference(ctx context.Context, referenceID id.ID) ([]*movement.LotMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"reference_id": referenceID}).
		OrderBy("created_at", "id")

	return r.selectMany(ctx, q)
}

func (r *MovementRepo) selectMany(ctx context.Context, q squirrel.SelectBuilder) ([]*movement.LotMovement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*movement.LotMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// Ensure interface compliance.
var _ movement.Repository = (*MovementRepo)(nil)
