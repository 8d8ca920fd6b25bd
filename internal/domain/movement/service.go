package movement

import (
	"context"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
)

// Service exposes read access to the movement log.
// Writes happen inside lot and transfer operations, not here.
type Service struct {
	repo Repository
}

// NewService creates a movement query service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ByLot returns the movement history of a lot, oldest first.
func (s *Service) ByLot(ctx context.Context, lotID id.ID) ([]*LotMovement, error) {
	if id.IsNil(lotID) {
		return nil, apperror.NewValidation("lot id is required")
	}
	return s.repo.ByLot(ctx, lotID)
}

// ByReference returns all movements produced by one operation, oldest first.
// Used for transfer reconciliation and cancellation review.
func (s *Service) ByReference(ctx context.Context, referenceID id.ID) ([]*LotMovement, error) {
	if id.IsNil(referenceID) {
		return nil, apperror.NewValidation("reference id is required")
	}
	return s.repo.ByReference(ctx, referenceID)
}
