package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/lot"
)

func day(d int) time.Time {
	return time.Date(2024, time.May, d, 0, 0, 0, 0, time.UTC)
}

func candidate(number string, received time.Time, qty, reserved int64) *lot.Lot {
	l := lot.New(id.New(), id.New())
	l.LotNumber = number
	l.ReceivedDate = received
	l.Quantity = types.NewQuantityFromInt(qty)
	l.ReservedQuantity = types.NewQuantityFromInt(reserved)
	return l
}

func TestBuild_OldestFirst(t *testing.T) {
	lots := []*lot.Lot{
		candidate("LOT-202405-0002", day(20), 100, 0),
		candidate("LOT-202405-0001", day(10), 100, 50),
	}

	plan := Build(lots, types.NewQuantityFromInt(120))

	require.True(t, plan.Complete())
	require.Len(t, plan.Lines, 2)
	// Older lot drained first, up to its available 50.
	assert.Equal(t, "LOT-202405-0001", plan.Lines[0].LotNumber)
	assert.Equal(t, types.NewQuantityFromInt(50), plan.Lines[0].Quantity)
	assert.Equal(t, "LOT-202405-0002", plan.Lines[1].LotNumber)
	assert.Equal(t, types.NewQuantityFromInt(70), plan.Lines[1].Quantity)
}

func TestBuild_TieBreakByLotNumber(t *testing.T) {
	lots := []*lot.Lot{
		candidate("LOT-202405-0003", day(10), 30, 0),
		candidate("LOT-202405-0001", day(10), 30, 0),
		candidate("LOT-202405-0002", day(10), 30, 0),
	}

	plan := Build(lots, types.NewQuantityFromInt(90))

	require.Len(t, plan.Lines, 3)
	assert.Equal(t, "LOT-202405-0001", plan.Lines[0].LotNumber)
	assert.Equal(t, "LOT-202405-0002", plan.Lines[1].LotNumber)
	assert.Equal(t, "LOT-202405-0003", plan.Lines[2].LotNumber)
}

func TestBuild_PartialPlanOnShortage(t *testing.T) {
	lots := []*lot.Lot{
		candidate("LOT-202405-0001", day(10), 40, 0),
	}

	plan := Build(lots, types.NewQuantityFromInt(100))

	assert.False(t, plan.Complete())
	assert.Equal(t, types.NewQuantityFromInt(40), plan.Total)
	assert.Equal(t, types.NewQuantityFromInt(60), plan.Shortfall())
}

func TestBuild_SkipsNonAllocatable(t *testing.T) {
	quarantined := candidate("LOT-202405-0001", day(1), 100, 0)
	quarantined.Status = lot.StatusQuarantined
	fullyReserved := candidate("LOT-202405-0002", day(2), 100, 100)
	ok := candidate("LOT-202405-0003", day(3), 100, 0)

	plan := Build([]*lot.Lot{quarantined, fullyReserved, ok}, types.NewQuantityFromInt(50))

	require.Len(t, plan.Lines, 1)
	assert.Equal(t, ok.ID, plan.Lines[0].LotID)
}

func TestBuild_Deterministic(t *testing.T) {
	lots := []*lot.Lot{
		candidate("LOT-202405-0002", day(10), 25, 0),
		candidate("LOT-202405-0001", day(10), 25, 0),
		candidate("LOT-202404-0009", day(1), 25, 0),
	}

	first := Build(lots, types.NewQuantityFromInt(60))
	for i := 0; i < 10; i++ {
		again := Build(lots, types.NewQuantityFromInt(60))
		assert.Equal(t, first, again)
	}
	// Planning never mutates candidates.
	assert.Equal(t, types.NewQuantityFromInt(25), lots[0].Quantity)
}

type stubSource struct {
	lots []*lot.Lot
	err  error
}

func (s *stubSource) ListAllocatable(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error) {
	return s.lots, s.err
}

func TestService_Preview(t *testing.T) {
	src := &stubSource{lots: []*lot.Lot{candidate("LOT-202405-0001", day(5), 80, 0)}}
	svc := NewService(src)

	plan, err := svc.Preview(context.Background(), id.New(), id.New(), types.NewQuantityFromInt(30))
	require.NoError(t, err)
	assert.True(t, plan.Complete())

	_, err = svc.Preview(context.Background(), id.New(), id.New(), types.NewQuantityFromInt(0))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}
