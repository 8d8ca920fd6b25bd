// Package lot_repo provides the PostgreSQL implementation of the lot repository.
package lot_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain"
	"lotkeeper/internal/domain/lot"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const lotsTable = "lots"

var lotColumns = []string{
	"id", "lot_number", "product_id", "product_name", "warehouse_id",
	"quantity", "reserved_quantity", "status",
	"received_date", "expiry_date", "cost_per_unit", "currency", "notes",
	"version", "created_at", "updated_at",
}

// LotRepo implements lot.Repository.
type LotRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLotRepo creates a lot repository.
func NewLotRepo(txm *postgres.TxManager) *LotRepo {
	return &LotRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a lot row.
func (r *LotRepo) Create(ctx context.Context, l *lot.Lot) error {
	q := r.builder.Insert(lotsTable).
		Columns(lotColumns...).
		Values(
			l.ID, l.LotNumber, l.ProductID, l.ProductName, l.WarehouseID,
			l.Quantity, l.ReservedQuantity, l.Status,
			l.ReceivedDate, l.ExpiryDate, l.CostPerUnit, l.Currency, l.Notes,
			l.Version, l.CreatedAt, l.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict("lot number already exists").
				WithDetail("lotNumber", l.LotNumber)
		}
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// GetByID retrieves a lot by id.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"id": lotID})

	return r.getOne(ctx, q, lotID)
}

// GetByNumber retrieves a lot by lot number.
func (r *LotRepo) GetByNumber(ctx context.Context, lotNumber string) (*lot.Lot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"lot_number": lotNumber})

	return r.getOne(ctx, q, lotNumber)
}

func (r *LotRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*lot.Lot, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l lot.Lot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("Lot", key)
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &l, nil
}

// Update persists a lot with an optimistic version check.
func (r *LotRepo) Update(ctx context.Context, l *lot.Lot) error {
	q := r.builder.Update(lotsTable).
		Set("lot_number", l.LotNumber).
		Set("product_name", l.ProductName).
		Set("quantity", l.Quantity).
		Set("reserved_quantity", l.ReservedQuantity).
		Set("status", l.Status).
		Set("expiry_date", l.ExpiryDate).
		Set("cost_per_unit", l.CostPerUnit).
		Set("currency", l.Currency).
		Set("notes", l.Notes).
		Set("version", l.Version+1).
		Set("updated_at", l.UpdatedAt).
		Where(squirrel.Eq{
			"id":      l.ID,
			"version": l.Version,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or someone updated it first.
		if _, getErr := r.GetByID(ctx, l.ID); getErr != nil {
			return getErr
		}
		return apperror.NewConcurrentModification("Lot", l.ID)
	}

	l.Version++
	return nil
}

// Delete removes a lot row. Movement references stay behind.
func (r *LotRepo) Delete(ctx context.Context, lotID id.ID) error {
	q := r.builder.Delete(lotsTable).Where(squirrel.Eq{"id": lotID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("Lot", lotID)
	}
	return nil
}

// List retrieves lots with filtering and pagination.
func (r *LotRepo) List(ctx context.Context, filter lot.ListFilter) (domain.ListResult[*lot.Lot], error) {
	result := domain.ListResult[*lot.Lot]{Limit: filter.Limit, Offset: filter.Offset}

	base := r.builder.Select().From(lotsTable)
	base = applyLotFilter(base, filter)

	countQ := base.Columns("COUNT(*)")
	sql, args, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count lots: %w", err)
	}

	pageQ := base.Columns(lotColumns...)
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "received_date"
	}
	pageQ = pageQ.OrderBy(orderBy, "lot_number")
	if filter.Limit > 0 {
		pageQ = pageQ.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		pageQ = pageQ.Offset(uint64(filter.Offset))
	}

	sql, args, err = pageQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select lots: %w", err)
	}
	return result, nil
}

func applyLotFilter(q squirrel.SelectBuilder, filter lot.ListFilter) squirrel.SelectBuilder {
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.ReceivedFrom != nil {
		q = q.Where(squirrel.GtOrEq{"received_date": *filter.ReceivedFrom})
	}
	if filter.ReceivedTo != nil {
		q = q.Where(squirrel.LtOrEq{"received_date": *filter.ReceivedTo})
	}
	return q
}

// GetForUpdate loads a lot with a row lock. Must run inside a transaction.
func (r *LotRepo) GetForUpdate(ctx context.Context, lotID id.ID) (*lot.Lot, error) {
	sql := `
		SELECT id, lot_number, product_id, product_name, warehouse_id,
		       quantity, reserved_quantity, status,
		       received_date, expiry_date, cost_per_unit, currency, notes,
		       version, created_at, updated_at
		FROM lots
		WHERE id = $1
		FOR UPDATE
	`

	var l lot.Lot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &l, sql, lotID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("Lot", lotID)
		}
		return nil, fmt.Errorf("get lot for update: %w", err)
	}
	return &l, nil
}

// ListAllocatableForUpdate loads allocatable lots of a product in a warehouse,
// row-locked, in FIFO order. Must run inside a transaction.
func (r *LotRepo) ListAllocatableForUpdate(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error) {
	sql := `
		SELECT id, lot_number, product_id, product_name, warehouse_id,
		       quantity, reserved_quantity, status,
		       received_date, expiry_date, cost_per_unit, currency, notes,
		       version, created_at, updated_at
		FROM lots
		WHERE product_id = $1
		  AND warehouse_id = $2
		  AND status = 'available'
		  AND quantity > reserved_quantity
		ORDER BY received_date, lot_number
		FOR UPDATE
	`

	var lots []*lot.Lot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, productID, warehouseID); err != nil {
		return nil, fmt.Errorf("select allocatable lots: %w", err)
	}
	return lots, nil
}

// ListAllocatable loads allocatable lots of a product in a warehouse in FIFO
// order, without locks. Used for allocation previews.
func (r *LotRepo) ListAllocatable(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error) {
	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{
			"product_id":   productID,
			"warehouse_id": warehouseID,
			"status":       lot.StatusAvailable,
		}).
		Where("quantity > reserved_quantity").
		OrderBy("received_date", "lot_number")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lots []*lot.Lot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("select allocatable lots: %w", err)
	}
	return lots, nil
}

// FindRestockTarget picks the newest available lot of a product in a
// warehouse, row-locked. Must run inside a transaction.
func (r *LotRepo) FindRestockTarget(ctx context.Context, productID, warehouseID id.ID) (*lot.Lot, error) {
	sql := `
		SELECT id, lot_number, product_id, product_name, warehouse_id,
		       quantity, reserved_quantity, status,
		       received_date, expiry_date, cost_per_unit, currency, notes,
		       version, created_at, updated_at
		FROM lots
		WHERE product_id = $1
		  AND warehouse_id = $2
		  AND status = 'available'
		ORDER BY received_date DESC, lot_number DESC
		LIMIT 1
		FOR UPDATE
	`

	var l lot.Lot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &l, sql, productID, warehouseID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("Lot", productID)
		}
		return nil, fmt.Errorf("find restock target: %w", err)
	}
	return &l, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ensure interface compliance.
var _ lot.Repository = (*LotRepo)(nil)
