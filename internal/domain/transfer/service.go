package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lotkeeper/internal/core/actor"
	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/numerator"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/domain/lot"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/pkg/logger"
)

// Ledger is the lot access the orchestrator needs.
// Satisfied by the lot repository; all calls run inside the orchestrator's
// transaction so row locks taken here hold until commit.
type Ledger interface {
	Create(ctx context.Context, l *lot.Lot) error
	Update(ctx context.Context, l *lot.Lot) error
	ListAllocatableForUpdate(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error)
	FindRestockTarget(ctx context.Context, productID, warehouseID id.ID) (*lot.Lot, error)
}

// MovementLog is the append access to the movement log.
type MovementLog interface {
	Append(ctx context.Context, m *movement.LotMovement) error
}

// Service orchestrates multi-step stock transfers.
// Ship, receive and cancel each run as a single transaction over row-locked
// lots, so planning and application cannot race with concurrent operations.
type Service struct {
	repo      Repository
	lots      Ledger
	movements MovementLog
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Recorder
	cfg       Config
}

// NewService creates a transfer service.
func NewService(
	repo Repository,
	lots Ledger,
	movements MovementLog,
	gen numerator.Generator,
	txManager tx.Manager,
	recorder audit.Recorder,
	cfg Config,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		repo:      repo,
		lots:      lots,
		movements: movements,
		numerator: gen,
		txManager: txManager,
		audit:     recorder,
		cfg:       cfg,
	}
}

// Create registers a pending transfer and assigns its number from the
// yearly sequence.
func (s *Service) Create(ctx context.Context, t *StockTransfer) error {
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Status != StatusPending {
		return apperror.NewValidation("new transfer must be pending").
			WithDetail("status", string(t.Status))
	}
	if err := t.Validate(ctx); err != nil {
		return err
	}

	if t.TransferNumber == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.TransferConfig(),
			&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate transfer number: %w", err)
		}
		t.TransferNumber = number
	}
	if t.CreatedBy == "" {
		t.CreatedBy = actor.GetID(ctx)
	}
	for i := range t.Items {
		if id.IsNil(t.Items[i].ID) {
			t.Items[i].ID = id.New()
		}
		t.Items[i].TransferID = t.ID
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		if err := s.repo.SaveItems(ctx, t.ID, t.Items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		return s.audit.Record(ctx, EntityType, t.ID, audit.ActionCreate, map[string]any{
			"transferNumber": t.TransferNumber,
			"items":          len(t.Items),
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer created", "id", t.ID, "number", t.TransferNumber)
	return nil
}

// GetByID retrieves a transfer with its items.
func (s *Service) GetByID(ctx context.Context, transferID id.ID) (*StockTransfer, error) {
	t, err := s.repo.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.GetItems(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	t.Items = items
	return t, nil
}

// List retrieves transfers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockTransfer], error) {
	return s.repo.List(ctx, filter)
}

// Ship allocates every item FIFO against the source warehouse and moves the
// transfer to in_transit. Shipment is all-or-nothing: any item that cannot be
// fully covered aborts the whole operation with InsufficientStock and no lot
// is touched.
func (s *Service) Ship(ctx context.Context, transferID id.ID) (*StockTransfer, error) {
	var shipped *StockTransfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return apperror.NewInvalidTransition("transfer", string(t.Status), "ship")
		}
		items, err := s.repo.GetItems(ctx, transferID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}

		for i := range items {
			if err := s.shipItem(ctx, t, &items[i]); err != nil {
				return err
			}
		}

		if err := s.repo.SaveItems(ctx, t.ID, items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		if err := t.MarkShipped(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		t.Items = items
		shipped = t
		return s.audit.Record(ctx, EntityType, t.ID, audit.ActionShip, map[string]any{
			"transferNumber": t.TransferNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer shipped", "id", transferID, "number", shipped.TransferNumber)
	return shipped, nil
}

// shipItem plans and applies FIFO allocation for one item. Candidate lots are
// row-locked, so the plan cannot be invalidated before it is applied.
func (s *Service) shipItem(ctx context.Context, t *StockTransfer, item *TransferItem) error {
	candidates, err := s.lots.ListAllocatableForUpdate(ctx, item.ProductID, t.FromWarehouseID)
	if err != nil {
		return fmt.Errorf("list lots for %s: %w", item.ProductID, err)
	}

	plan := allocation.Build(candidates, item.RequestedQuantity)
	if !plan.Complete() {
		return apperror.NewInsufficientStock(
			item.ProductID.String(),
			item.RequestedQuantity.Float64(),
			plan.Total.Float64(),
		)
	}

	byID := make(map[id.ID]*lot.Lot, len(candidates))
	for _, l := range candidates {
		byID[l.ID] = l
	}

	actorID := actor.GetID(ctx)
	costTotal := decimal.Zero
	currency := ""
	for _, line := range plan.Lines {
		l := byID[line.LotID]
		if err := l.Deduct(line.Quantity); err != nil {
			return err
		}
		if err := s.lots.Update(ctx, l); err != nil {
			return err
		}

		costTotal = costTotal.Add(l.CostPerUnit.Mul(qtyDecimal(line.Quantity)))
		if currency == "" {
			currency = l.Currency
		}

		mv := movement.New(movement.TypeTransfer, line.Quantity.Neg()).
			ForLot(l.ID).
			WithReason("transfer shipment").
			WithWarehouses(&t.FromWarehouseID, &t.ToWarehouseID).
			WithReference(movement.ReferenceTransfer, t.ID).
			By(actorID)
		if err := s.movements.Append(ctx, mv); err != nil {
			return fmt.Errorf("append shipment movement: %w", err)
		}
	}

	item.ShippedQuantity = item.RequestedQuantity
	item.UnitCost = costTotal.Div(qtyDecimal(item.ShippedQuantity))
	item.Currency = currency
	return nil
}

// Receive completes an in_transit transfer. Every received item produces a
// fresh lot at the destination warehouse; items absent from receivedItems
// default to their full shipped quantity. A shortfall against the shipped
// quantity is recorded as a transit discrepancy movement.
func (s *Service) Receive(ctx context.Context, transferID id.ID, receivedItems map[id.ID]types.Quantity) (*StockTransfer, error) {
	var received *StockTransfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusInTransit {
			return apperror.NewInvalidTransition("transfer", string(t.Status), "receive")
		}
		items, err := s.repo.GetItems(ctx, transferID)
		if err != nil {
			return fmt.Errorf("get items: %w", err)
		}

		known := make(map[id.ID]bool, len(items))
		for _, item := range items {
			known[item.ID] = true
		}
		for itemID := range receivedItems {
			if !known[itemID] {
				return apperror.NewValidation("unknown transfer item").
					WithDetail("itemId", itemID)
			}
		}

		for i := range items {
			if err := s.receiveItem(ctx, t, &items[i], receivedItems); err != nil {
				return err
			}
		}

		if err := s.repo.SaveItems(ctx, t.ID, items); err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		if err := t.MarkReceived(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		t.Items = items
		received = t
		return s.audit.Record(ctx, EntityType, t.ID, audit.ActionReceive, map[string]any{
			"transferNumber": t.TransferNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer received", "id", transferID, "number", received.TransferNumber)
	return received, nil
}

func (s *Service) receiveItem(ctx context.Context, t *StockTransfer, item *TransferItem, receivedItems map[id.ID]types.Quantity) error {
	recvQty := item.ShippedQuantity
	if qty, ok := receivedItems[item.ID]; ok {
		recvQty = qty
	}
	if recvQty.IsNegative() {
		return apperror.NewValidation("received quantity must not be negative").
			WithDetail("itemId", item.ID)
	}
	if recvQty > item.ShippedQuantity {
		return apperror.NewValidation("received quantity exceeds shipped quantity").
			WithDetail("itemId", item.ID).
			WithDetail("shipped", item.ShippedQuantity.String()).
			WithDetail("received", recvQty.String())
	}

	actorID := actor.GetID(ctx)
	if recvQty.IsPositive() {
		dest := lot.New(item.ProductID, t.ToWarehouseID)
		dest.ProductName = item.ProductName
		dest.Quantity = recvQty
		dest.ReceivedDate = time.Now().UTC()
		if s.cfg.CarryOverCost {
			dest.CostPerUnit = item.UnitCost
			dest.Currency = item.Currency
		}

		number, err := s.numerator.GetNextNumber(ctx,
			numerator.LotConfig(item.ProductID.String()), nil, dest.ReceivedDate)
		if err != nil {
			return fmt.Errorf("generate lot number: %w", err)
		}
		dest.LotNumber = number

		if err := s.lots.Create(ctx, dest); err != nil {
			return fmt.Errorf("create destination lot: %w", err)
		}

		mv := movement.New(movement.TypeTransfer, recvQty).
			ForLot(dest.ID).
			WithReason("transfer receipt").
			WithWarehouses(&t.FromWarehouseID, &t.ToWarehouseID).
			WithReference(movement.ReferenceTransfer, t.ID).
			By(actorID)
		if err := s.movements.Append(ctx, mv); err != nil {
			return fmt.Errorf("append receipt movement: %w", err)
		}
	}

	if shortfall := item.ShippedQuantity - recvQty; shortfall.IsPositive() {
		// Lost in transit: not attached to any lot.
		mv := movement.New(movement.TypeAdjust, shortfall.Neg()).
			WithReason("transit shortfall").
			WithWarehouses(&t.FromWarehouseID, &t.ToWarehouseID).
			WithReference(movement.ReferenceTransfer, t.ID).
			By(actorID)
		if err := s.movements.Append(ctx, mv); err != nil {
			return fmt.Errorf("append discrepancy movement: %w", err)
		}
	}

	item.ReceivedQuantity = recvQty
	return nil
}

// Cancel aborts a transfer. A pending transfer is cancelled directly. An
// in_transit transfer returns every shipped quantity to the source warehouse:
// into an existing available lot of the product when one exists, otherwise
// into a new RET-<transferNumber>-NN lot.
func (s *Service) Cancel(ctx context.Context, transferID id.ID) (*StockTransfer, error) {
	var cancelled *StockTransfer
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != StatusPending && t.Status != StatusInTransit {
			return apperror.NewInvalidTransition("transfer", string(t.Status), "cancel")
		}

		if t.Status == StatusInTransit {
			items, err := s.repo.GetItems(ctx, transferID)
			if err != nil {
				return fmt.Errorf("get items: %w", err)
			}
			for i := range items {
				if err := s.returnItem(ctx, t, &items[i], i+1); err != nil {
					return err
				}
			}
			t.Items = items
		}

		if err := t.MarkCancelled(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}
		cancelled = t
		return s.audit.Record(ctx, EntityType, t.ID, audit.ActionCancel, map[string]any{
			"transferNumber": t.TransferNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer cancelled", "id", transferID, "number", cancelled.TransferNumber)
	return cancelled, nil
}

// returnItem restores one item's shipped quantity to the source warehouse.
func (s *Service) returnItem(ctx context.Context, t *StockTransfer, item *TransferItem, ordinal int) error {
	qty := item.ShippedQuantity
	if !qty.IsPositive() {
		return nil
	}

	var target *lot.Lot
	existing, err := s.lots.FindRestockTarget(ctx, item.ProductID, t.FromWarehouseID)
	switch {
	case err == nil:
		if err := existing.Restock(qty); err != nil {
			return err
		}
		if err := s.lots.Update(ctx, existing); err != nil {
			return err
		}
		target = existing
	case apperror.IsNotFound(err):
		ret := lot.New(item.ProductID, t.FromWarehouseID)
		ret.LotNumber = fmt.Sprintf("RET-%s-%02d", t.TransferNumber, ordinal)
		ret.ProductName = item.ProductName
		ret.Quantity = qty
		ret.ReceivedDate = time.Now().UTC()
		ret.CostPerUnit = item.UnitCost
		ret.Currency = item.Currency
		if err := s.lots.Create(ctx, ret); err != nil {
			return fmt.Errorf("create return lot: %w", err)
		}
		target = ret
	default:
		return err
	}

	mv := movement.New(movement.TypeAdjust, qty).
		ForLot(target.ID).
		WithReason("cancellation return").
		WithWarehouses(&t.ToWarehouseID, &t.FromWarehouseID).
		WithReference(movement.ReferenceTransfer, t.ID).
		By(actor.GetID(ctx))
	if err := s.movements.Append(ctx, mv); err != nil {
		return fmt.Errorf("append return movement: %w", err)
	}
	return nil
}

// qtyDecimal converts a fixed-point quantity to an exact decimal.
func qtyDecimal(q types.Quantity) decimal.Decimal {
	return decimal.New(q.Int64Scaled(), -4)
}
