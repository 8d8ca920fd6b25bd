// Package transfer_repo provides the PostgreSQL implementation of the
// stock transfer repository.
package transfer_repo

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
	"lotkeeper/internal/domain/transfer"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const (
	transfersTable = "stock_transfers"
	itemsTable     = "stock_transfer_items"
)

var transferColumns = []string{
	"id", "transfer_number", "from_warehouse_id", "to_warehouse_id",
	"status", "notes", "created_by", "shipped_at", "received_at",
	"version", "created_at", "updated_at",
}

var itemColumns = []string{
	"id", "transfer_id", "product_id", "product_name",
	"requested_quantity", "shipped_quantity", "received_quantity",
	"unit_cost", "currency",
}

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewTransferRepo creates a transfer repository.
func NewTransferRepo(txm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a transfer header.
func (r *TransferRepo) Create(ctx context.Context, t *transfer.StockTransfer) error {
	q := r.builder.Insert(transfersTable).
		Columns(transferColumns...).
		Values(
			t.ID, t.TransferNumber, t.FromWarehouseID, t.ToWarehouseID,
			t.Status, t.Notes, t.CreatedBy, t.ShippedAt, t.ReceivedAt,
			t.Version, t.CreatedAt, t.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict("transfer number already exists").
				WithDetail("transferNumber", t.TransferNumber)
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID retrieves a transfer header by id.
func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (*transfer.StockTransfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Eq{"id": transferID})

	return r.getOne(ctx, q, transferID)
}

// GetByNumber retrieves a transfer header by number.
func (r *TransferRepo) GetByNumber(ctx context.Context, number string) (*transfer.StockTransfer, error) {
	q := r.builder.Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Eq{"transfer_number": number})

	return r.getOne(ctx, q, number)
}

func (r *TransferRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*transfer.StockTransfer, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t transfer.StockTransfer
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("StockTransfer", key)
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return &t, nil
}

// Update persists a transfer header with an optimistic version check.
func (r *TransferRepo) Update(ctx context.Context, t *transfer.StockTransfer) error {
	q := r.builder.Update(transfersTable).
		Set("status", t.Status).
		Set("notes", t.Notes).
		Set("shipped_at", t.ShippedAt).
		Set("received_at", t.ReceivedAt).
		Set("version", t.Version+1).
		Set("updated_at", t.UpdatedAt).
		Where(squirrel.Eq{
			"id":      t.ID,
			"version": t.Version,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, t.ID); getErr != nil {
			return getErr
		}
		return apperror.NewConcurrentModification("StockTransfer", t.ID)
	}

	t.Version++
	return nil
}

// GetItems loads the table part of a transfer.
func (r *TransferRepo) GetItems(ctx context.Context, transferID id.ID) ([]transfer.TransferItem, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		OrderBy("id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []transfer.TransferItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

// SaveItems replaces the table part of a transfer.
func (r *TransferRepo) SaveItems(ctx context.Context, transferID id.ID, items []transfer.TransferItem) error {
	querier := r.txm.GetQuerier(ctx)

	delSQL, delArgs, err := r.builder.Delete(itemsTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	q := r.builder.Insert(itemsTable).Columns(itemColumns...)
	for _, item := range items {
		q = q.Values(
			item.ID, transferID, item.ProductID, item.ProductName,
			item.RequestedQuantity, item.ShippedQuantity, item.ReceivedQuantity,
			item.UnitCost, item.Currency,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	return nil
}

// List retrieves transfers with filtering and pagination.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.StockTransfer], error) {
	result := domain.ListResult[*transfer.StockTransfer]{Limit: filter.Limit, Offset: filter.Offset}

	base := r.builder.Select().From(transfersTable)
	if filter.Status != nil {
		base = base.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.FromWarehouseID != nil {
		base = base.Where(squirrel.Eq{"from_warehouse_id": *filter.FromWarehouseID})
	}
	if filter.ToWarehouseID != nil {
		base = base.Where(squirrel.Eq{"to_warehouse_id": *filter.ToWarehouseID})
	}
	if filter.CreatedFrom != nil {
		base = base.Where(squirrel.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		base = base.Where(squirrel.LtOrEq{"created_at": *filter.CreatedTo})
	}

	countQ := base.Columns("COUNT(*)")
	sql, args, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count transfers: %w", err)
	}

	pageQ := base.Columns(transferColumns...)
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	pageQ = pageQ.OrderBy(orderBy)
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
		return result, fmt.Errorf("select transfers: %w", err)
	}
	return result, nil
}

// GetForUpdate loads a transfer header with a row lock.
// Must run inside a transaction.
func (r *TransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*transfer.StockTransfer, error) {
	sql := `
		SELECT id, transfer_number, from_warehouse_id, to_warehouse_id,
		       status, notes, created_by, shipped_at, received_at,
		       version, created_at, updated_at
		FROM stock_transfers
		WHERE id = $1
		FOR UPDATE
	`

	var t transfer.StockTransfer
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, transferID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("StockTransfer", transferID)
		}
		return nil, fmt.Errorf("get transfer for update: %w", err)
	}
	return &t, nil
}

// Ensure interface compliance.
var _ transfer.Repository = (*TransferRepo)(nil)
