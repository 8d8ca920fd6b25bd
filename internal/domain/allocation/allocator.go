// Package allocation provides FIFO allocation planning over lots.
// Planning is pure: it never mutates lots. Callers apply the plan under the
// same locks they used to load the candidates.
package allocation

import (
	"context"
	"sort"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/lot"
)

// Line is one lot's contribution to a plan.
type Line struct {
	LotID     id.ID          `json:"lotId"`
	LotNumber string         `json:"lotNumber"`
	Quantity  types.Quantity `json:"quantity"`
}

// Plan is the result of FIFO planning. A plan may be partial: Total can be
// less than Requested when stock is insufficient. Callers must check
// Shortfall before applying.
type Plan struct {
	Lines     []Line         `json:"lines"`
	Requested types.Quantity `json:"requested"`
	Total     types.Quantity `json:"total"`
}

// Shortfall is the unmet part of the request. Zero for a complete plan.
func (p Plan) Shortfall() types.Quantity {
	return p.Requested - p.Total
}

// Complete reports whether the plan fully covers the request.
func (p Plan) Complete() bool {
	return p.Shortfall().IsZero()
}

// Build plans a FIFO allocation of requested quantity across candidate lots.
// Only allocatable lots participate. Candidates are taken oldest receivedDate
// first, with lotNumber as the deterministic tie-break, greedily up to each
// lot's available quantity.
func Build(candidates []*lot.Lot, requested types.Quantity) Plan {
	plan := Plan{Requested: requested}
	if !requested.IsPositive() {
		return plan
	}

	eligible := make([]*lot.Lot, 0, len(candidates))
	for _, l := range candidates {
		if l.Allocatable() {
			eligible = append(eligible, l)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].ReceivedDate.Equal(eligible[j].ReceivedDate) {
			return eligible[i].LotNumber < eligible[j].LotNumber
		}
		return eligible[i].ReceivedDate.Before(eligible[j].ReceivedDate)
	})

	remaining := requested
	for _, l := range eligible {
		if remaining.IsZero() {
			break
		}
		take := l.AvailableQuantity().Min(remaining)
		plan.Lines = append(plan.Lines, Line{
			LotID:     l.ID,
			LotNumber: l.LotNumber,
			Quantity:  take,
		})
		plan.Total += take
		remaining -= take
	}

	return plan
}

// CandidateSource loads allocatable lots for planning previews.
// The transfer orchestrator bypasses this and loads row-locked candidates
// through its own repository.
type CandidateSource interface {
	ListAllocatable(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error)
}

// Service provides allocation previews outside of any transaction.
// Preview results are advisory: concurrent operations can invalidate them.
type Service struct {
	source CandidateSource
}

// NewService creates an allocation preview service.
func NewService(source CandidateSource) *Service {
	return &Service{source: source}
}

// Preview plans a FIFO allocation against current stock without locks.
func (s *Service) Preview(ctx context.Context, productID, warehouseID id.ID, requested types.Quantity) (Plan, error) {
	if id.IsNil(productID) {
		return Plan{}, apperror.NewValidation("product id is required")
	}
	if !requested.IsPositive() {
		return Plan{}, apperror.NewValidation("requested quantity must be positive")
	}

	candidates, err := s.source.ListAllocatable(ctx, productID, warehouseID)
	if err != nil {
		return Plan{}, err
	}
	return Build(candidates, requested), nil
}
