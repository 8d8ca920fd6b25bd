package lot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/actor"
	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/numerator"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain"
	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/domain/movement"
)

// --- in-memory fakes ---

type memRepo struct {
	lots map[id.ID]*Lot
}

func newMemRepo() *memRepo {
	return &memRepo{lots: make(map[id.ID]*Lot)}
}

func (r *memRepo) clone(l *Lot) *Lot {
	cp := *l
	return &cp
}

func (r *memRepo) Create(ctx context.Context, l *Lot) error {
	r.lots[l.ID] = r.clone(l)
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	l, ok := r.lots[lotID]
	if !ok {
		return nil, apperror.NewNotFound("Lot", lotID)
	}
	return r.clone(l), nil
}

func (r *memRepo) GetByNumber(ctx context.Context, lotNumber string) (*Lot, error) {
	for _, l := range r.lots {
		if l.LotNumber == lotNumber {
			return r.clone(l), nil
		}
	}
	return nil, apperror.NewNotFound("Lot", lotNumber)
}

func (r *memRepo) Update(ctx context.Context, l *Lot) error {
	stored, ok := r.lots[l.ID]
	if !ok {
		return apperror.NewNotFound("Lot", l.ID)
	}
	if stored.Version != l.Version {
		return apperror.NewConcurrentModification("Lot", l.ID)
	}
	l.Version++
	r.lots[l.ID] = r.clone(l)
	return nil
}

func (r *memRepo) Delete(ctx context.Context, lotID id.ID) error {
	if _, ok := r.lots[lotID]; !ok {
		return apperror.NewNotFound("Lot", lotID)
	}
	delete(r.lots, lotID)
	return nil
}

func (r *memRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error) {
	result := domain.ListResult[*Lot]{Limit: filter.Limit, Offset: filter.Offset}
	for _, l := range r.lots {
		result.Items = append(result.Items, r.clone(l))
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, lotID id.ID) (*Lot, error) {
	return r.GetByID(ctx, lotID)
}

func (r *memRepo) ListAllocatableForUpdate(ctx context.Context, productID, warehouseID id.ID) ([]*Lot, error) {
	var out []*Lot
	for _, l := range r.lots {
		if l.ProductID == productID && l.WarehouseID == warehouseID && l.Allocatable() {
			out = append(out, r.clone(l))
		}
	}
	return out, nil
}

func (r *memRepo) FindRestockTarget(ctx context.Context, productID, warehouseID id.ID) (*Lot, error) {
	for _, l := range r.lots {
		if l.ProductID == productID && l.WarehouseID == warehouseID && l.Status == StatusAvailable {
			return r.clone(l), nil
		}
	}
	return nil, apperror.NewNotFound("Lot", productID)
}

type memMovements struct {
	rows []*movement.LotMovement
}

func (m *memMovements) Append(ctx context.Context, mv *movement.LotMovement) error {
	m.rows = append(m.rows, mv)
	return nil
}

func (m *memMovements) ByLot(ctx context.Context, lotID id.ID) ([]*movement.LotMovement, error) {
	var out []*movement.LotMovement
	for _, mv := range m.rows {
		if mv.LotID != nil && *mv.LotID == lotID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memMovements) ByReference(ctx context.Context, referenceID id.ID) ([]*movement.LotMovement, error) {
	var out []*movement.LotMovement
	for _, mv := range m.rows {
		if mv.ReferenceID != nil && *mv.ReferenceID == referenceID {
			out = append(out, mv)
		}
	}
	return out, nil
}

type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	return errors.New("audit store unavailable")
}

type passTxManager struct{}

func (passTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(t *testing.T) (*Service, *memRepo, *memMovements) {
	t.Helper()
	repo := newMemRepo()
	movements := &memMovements{}
	svc := NewService(repo, movements, &numerator.MockGenerator{}, passTxManager{}, audit.NopRecorder{})
	return svc, repo, movements
}

func testCtx() context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{ID: "user-1"})
}

// --- tests ---

func TestService_Create(t *testing.T) {
	svc, repo, movements := newTestService(t)
	ctx := testCtx()

	l := New(id.New(), id.New())
	l.ProductName = "Widget"
	l.Quantity = types.NewQuantityFromInt(100)
	l.ReceivedDate = time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Create(ctx, l))

	assert.Equal(t, "LOT-202405-0001", l.LotNumber)
	stored, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, stored.Status)
	assert.True(t, stored.ReservedQuantity.IsZero())

	// Initial stock writes a receive movement.
	require.Len(t, movements.rows, 1)
	mv := movements.rows[0]
	assert.Equal(t, movement.TypeReceive, mv.Type)
	assert.Equal(t, types.NewQuantityFromInt(100), mv.Quantity)
	assert.Equal(t, "user-1", mv.PerformedBy)
}

func TestService_Create_ZeroQuantityHasNoMovement(t *testing.T) {
	svc, _, movements := newTestService(t)

	l := New(id.New(), id.New())
	require.NoError(t, svc.Create(testCtx(), l))
	assert.Empty(t, movements.rows)
}

func TestService_Create_NegativeQuantityRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	l := New(id.New(), id.New())
	l.Quantity = types.NewQuantityFromInt(-5)

	err := svc.Create(testCtx(), l)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestService_ReserveReleaseRoundTrip(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := testCtx()

	l := New(id.New(), id.New())
	l.Quantity = types.NewQuantityFromInt(100)
	require.NoError(t, svc.Create(ctx, l))

	got, err := svc.Reserve(ctx, l.ID, types.NewQuantityFromInt(60))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(60), got.ReservedQuantity)

	_, err = svc.Reserve(ctx, l.ID, types.NewQuantityFromInt(50))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeInsufficientAvailable, appErr.Code)

	got, err = svc.Release(ctx, l.ID, types.NewQuantityFromInt(60))
	require.NoError(t, err)
	assert.True(t, got.ReservedQuantity.IsZero())

	stored, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	// Create(1) + two successful updates.
	assert.Equal(t, 3, stored.Version)
}

func TestService_Consume(t *testing.T) {
	svc, _, movements := newTestService(t)
	ctx := testCtx()

	l := New(id.New(), id.New())
	l.Quantity = types.NewQuantityFromInt(50)
	require.NoError(t, svc.Create(ctx, l))

	got, err := svc.Consume(ctx, l.ID, types.NewQuantityFromInt(50), "production order")
	require.NoError(t, err)
	assert.Equal(t, StatusConsumed, got.Status)

	// receive + issue
	byLot, err := movements.ByLot(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, byLot, 2)
	issue := byLot[1]
	assert.Equal(t, movement.TypeIssue, issue.Type)
	assert.Equal(t, types.NewQuantityFromInt(-50), issue.Quantity)
	assert.Equal(t, "production order", issue.Reason)
}

// TestService_Create_AuditFailureFailsOperation pins the audit contract: the
// recorder runs inside the transaction, so its failure fails the operation.
func TestService_Create_AuditFailureFailsOperation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &memMovements{}, &numerator.MockGenerator{}, passTxManager{}, failingRecorder{})

	l := New(id.New(), id.New())
	l.Quantity = types.NewQuantityFromInt(10)
	err := svc.Create(testCtx(), l)
	require.Error(t, err)
	assert.ErrorContains(t, err, "audit store unavailable")
}

func TestService_Update_InvariantViolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := testCtx()

	l := New(id.New(), id.New())
	l.Quantity = types.NewQuantityFromInt(100)
	require.NoError(t, svc.Create(ctx, l))
	_, err := svc.Reserve(ctx, l.ID, types.NewQuantityFromInt(80))
	require.NoError(t, err)

	// Shrinking quantity below the reservation must be rejected.
	newQty := types.NewQuantityFromInt(50)
	_, err = svc.Update(ctx, l.ID, UpdatePatch{Quantity: &newQty})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvariantViolation, appErr.Code)
}

func TestService_Delete(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := testCtx()

	l := New(id.New(), id.New())
	require.NoError(t, svc.Create(ctx, l))
	require.NoError(t, svc.Delete(ctx, l.ID))

	_, err := repo.GetByID(ctx, l.ID)
	require.True(t, apperror.IsNotFound(err))

	err = svc.Delete(ctx, l.ID)
	require.True(t, apperror.IsNotFound(err))
}
