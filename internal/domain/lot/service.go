package lot

import (
	"context"
	"fmt"
	"time"

	"lotkeeper/internal/core/actor"
	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/numerator"
	"lotkeeper/internal/core/tx"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain"
	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/domain/movement"
	"lotkeeper/pkg/logger"
)

// EntityType is the audit entity type for lots.
const EntityType = "Lot"

// Service provides business operations on the lot ledger.
// Every quantity mutation runs inside a transaction with a row lock and
// writes a movement row in the same transaction.
type Service struct {
	repo      Repository
	movements movement.Repository
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Recorder
}

// NewService creates a lot service.
func NewService(
	repo Repository,
	movements movement.Repository,
	gen numerator.Generator,
	txManager tx.Manager,
	recorder audit.Recorder,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		repo:      repo,
		movements: movements,
		numerator: gen,
		txManager: txManager,
		audit:     recorder,
	}
}

// Create registers a new lot. A missing lot number is generated from the
// per-product monthly sequence. A lot created with stock writes an initial
// receive movement.
func (s *Service) Create(ctx context.Context, l *Lot) error {
	if l.Status == "" {
		l.Status = StatusAvailable
	}
	if l.ReceivedDate.IsZero() {
		l.ReceivedDate = time.Now().UTC()
	}
	if err := l.Validate(ctx); err != nil {
		return err
	}

	if l.LotNumber == "" {
		cfg := numerator.LotConfig(l.ProductID.String())
		number, err := s.numerator.GetNextNumber(ctx, cfg, nil, l.ReceivedDate)
		if err != nil {
			return fmt.Errorf("generate lot number: %w", err)
		}
		l.LotNumber = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, l); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}
		if l.Quantity.IsPositive() {
			mv := movement.New(movement.TypeReceive, l.Quantity).
				ForLot(l.ID).
				WithReason("initial receipt").
				WithWarehouses(nil, &l.WarehouseID).
				WithReference(movement.ReferenceLot, l.ID).
				By(actor.GetID(ctx))
			if err := s.movements.Append(ctx, mv); err != nil {
				return fmt.Errorf("append receive movement: %w", err)
			}
		}
		return s.audit.Record(ctx, EntityType, l.ID, audit.ActionCreate, map[string]any{
			"lotNumber": l.LotNumber,
			"quantity":  l.Quantity.String(),
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "lot created", "id", l.ID, "number", l.LotNumber)
	return nil
}

// GetByID retrieves a lot.
func (s *Service) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	return s.repo.GetByID(ctx, lotID)
}

// GetByNumber retrieves a lot by its lot number.
func (s *Service) GetByNumber(ctx context.Context, lotNumber string) (*Lot, error) {
	return s.repo.GetByNumber(ctx, lotNumber)
}

// List retrieves lots with filtering and pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error) {
	return s.repo.List(ctx, filter)
}

// UpdatePatch describes a partial lot update. Nil fields are left unchanged.
type UpdatePatch struct {
	ProductName      *string
	Quantity         *types.Quantity
	ReservedQuantity *types.Quantity
	Status           *Status
	ExpiryDate       *time.Time
	CostPerUnit      *types.Money
	Currency         *string
	Notes            *string
}

// Update applies a partial update and re-validates invariants on the merged
// state. A patch that would leave reserved outside [0, quantity] is rejected
// with InvariantViolation.
func (s *Service) Update(ctx context.Context, lotID id.ID, patch UpdatePatch) (*Lot, error) {
	var updated *Lot
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetForUpdate(ctx, lotID)
		if err != nil {
			return err
		}

		if patch.ProductName != nil {
			l.ProductName = *patch.ProductName
		}
		if patch.Quantity != nil {
			l.Quantity = *patch.Quantity
		}
		if patch.ReservedQuantity != nil {
			l.ReservedQuantity = *patch.ReservedQuantity
		}
		if patch.Status != nil {
			l.Status = *patch.Status
		}
		if patch.ExpiryDate != nil {
			l.ExpiryDate = patch.ExpiryDate
		}
		if patch.CostPerUnit != nil {
			l.CostPerUnit = *patch.CostPerUnit
		}
		if patch.Currency != nil {
			l.Currency = *patch.Currency
		}
		if patch.Notes != nil {
			l.Notes = *patch.Notes
		}

		if err := l.Validate(ctx); err != nil {
			return err
		}
		l.Touch()

		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}
		updated = l
		return s.audit.Record(ctx, EntityType, l.ID, audit.ActionUpdate, map[string]any{
			"quantity": l.Quantity.String(),
			"reserved": l.ReservedQuantity.String(),
			"status":   string(l.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a lot unconditionally. Movement rows referencing the lot
// remain for history; their lot reference becomes orphaned.
func (s *Service) Delete(ctx context.Context, lotID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, l.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, EntityType, l.ID, audit.ActionDelete, map[string]any{
			"lotNumber": l.LotNumber,
		})
	})
}

// Reserve earmarks quantity on a lot without removing it from stock.
func (s *Service) Reserve(ctx context.Context, lotID id.ID, qty types.Quantity) (*Lot, error) {
	return s.mutate(ctx, lotID, audit.ActionReserve, func(l *Lot) error {
		return l.Reserve(qty)
	})
}

// Release returns previously reserved quantity to the available pool.
func (s *Service) Release(ctx context.Context, lotID id.ID, qty types.Quantity) (*Lot, error) {
	return s.mutate(ctx, lotID, audit.ActionRelease, func(l *Lot) error {
		return l.Release(qty)
	})
}

// Consume removes quantity from stock and writes an issue movement with
// negative quantity. Consuming the full remainder marks the lot consumed.
func (s *Service) Consume(ctx context.Context, lotID id.ID, qty types.Quantity, reason string) (*Lot, error) {
	var consumed *Lot
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if err := l.Consume(qty); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}

		mv := movement.New(movement.TypeIssue, qty.Neg()).
			ForLot(l.ID).
			WithReason(reason).
			WithWarehouses(&l.WarehouseID, nil).
			WithReference(movement.ReferenceLot, l.ID).
			By(actor.GetID(ctx))
		if err := s.movements.Append(ctx, mv); err != nil {
			return fmt.Errorf("append issue movement: %w", err)
		}

		consumed = l
		return s.audit.Record(ctx, EntityType, l.ID, audit.ActionConsume, map[string]any{
			"quantity": qty.String(),
			"reason":   reason,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot consumed", "id", lotID, "quantity", qty.String())
	return consumed, nil
}

func (s *Service) mutate(ctx context.Context, lotID id.ID, action audit.Action, op func(l *Lot) error) (*Lot, error) {
	if id.IsNil(lotID) {
		return nil, apperror.NewValidation("lot id is required")
	}

	var result *Lot
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if err := op(l); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}
		result = l
		return s.audit.Record(ctx, EntityType, l.ID, action, map[string]any{
			"quantity": l.Quantity.String(),
			"reserved": l.ReservedQuantity.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
