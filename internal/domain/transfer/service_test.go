package transfer

import (
	"context"
	"fmt"
	"sort"
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
	"lotkeeper/internal/domain/lot"
	"lotkeeper/internal/domain/movement"
)

// --- in-memory fakes ---

type memLots struct {
	lots map[id.ID]*lot.Lot
}

func newMemLots() *memLots {
	return &memLots{lots: make(map[id.ID]*lot.Lot)}
}

func (r *memLots) clone(l *lot.Lot) *lot.Lot {
	cp := *l
	return &cp
}

func (r *memLots) snapshot() map[id.ID]*lot.Lot {
	out := make(map[id.ID]*lot.Lot, len(r.lots))
	for k, v := range r.lots {
		out[k] = r.clone(v)
	}
	return out
}

func (r *memLots) Create(ctx context.Context, l *lot.Lot) error {
	r.lots[l.ID] = r.clone(l)
	return nil
}

func (r *memLots) Update(ctx context.Context, l *lot.Lot) error {
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

func (r *memLots) ListAllocatableForUpdate(ctx context.Context, productID, warehouseID id.ID) ([]*lot.Lot, error) {
	var out []*lot.Lot
	for _, l := range r.lots {
		if l.ProductID == productID && l.WarehouseID == warehouseID && l.Allocatable() {
			out = append(out, r.clone(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotNumber < out[j].LotNumber })
	return out, nil
}

func (r *memLots) FindRestockTarget(ctx context.Context, productID, warehouseID id.ID) (*lot.Lot, error) {
	var candidates []*lot.Lot
	for _, l := range r.lots {
		if l.ProductID == productID && l.WarehouseID == warehouseID && l.Status == lot.StatusAvailable {
			candidates = append(candidates, r.clone(l))
		}
	}
	if len(candidates) == 0 {
		return nil, apperror.NewNotFound("Lot", productID)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].LotNumber < candidates[j].LotNumber })
	return candidates[0], nil
}

func (r *memLots) totalAt(productID, warehouseID id.ID) types.Quantity {
	var total types.Quantity
	for _, l := range r.lots {
		if l.ProductID == productID && l.WarehouseID == warehouseID {
			total += l.Quantity
		}
	}
	return total
}

func (r *memLots) at(warehouseID id.ID) []*lot.Lot {
	var out []*lot.Lot
	for _, l := range r.lots {
		if l.WarehouseID == warehouseID {
			out = append(out, r.clone(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LotNumber < out[j].LotNumber })
	return out
}

type memTransfers struct {
	transfers map[id.ID]*StockTransfer
	items     map[id.ID][]TransferItem
}

func newMemTransfers() *memTransfers {
	return &memTransfers{
		transfers: make(map[id.ID]*StockTransfer),
		items:     make(map[id.ID][]TransferItem),
	}
}

func (r *memTransfers) clone(t *StockTransfer) *StockTransfer {
	cp := *t
	cp.Items = nil
	return &cp
}

func (r *memTransfers) Create(ctx context.Context, t *StockTransfer) error {
	r.transfers[t.ID] = r.clone(t)
	return nil
}

func (r *memTransfers) GetByID(ctx context.Context, transferID id.ID) (*StockTransfer, error) {
	t, ok := r.transfers[transferID]
	if !ok {
		return nil, apperror.NewNotFound("StockTransfer", transferID)
	}
	return r.clone(t), nil
}

func (r *memTransfers) GetByNumber(ctx context.Context, number string) (*StockTransfer, error) {
	for _, t := range r.transfers {
		if t.TransferNumber == number {
			return r.clone(t), nil
		}
	}
	return nil, apperror.NewNotFound("StockTransfer", number)
}

func (r *memTransfers) Update(ctx context.Context, t *StockTransfer) error {
	stored, ok := r.transfers[t.ID]
	if !ok {
		return apperror.NewNotFound("StockTransfer", t.ID)
	}
	if stored.Version != t.Version {
		return apperror.NewConcurrentModification("StockTransfer", t.ID)
	}
	t.Version++
	r.transfers[t.ID] = r.clone(t)
	return nil
}

func (r *memTransfers) GetItems(ctx context.Context, transferID id.ID) ([]TransferItem, error) {
	return append([]TransferItem(nil), r.items[transferID]...), nil
}

func (r *memTransfers) SaveItems(ctx context.Context, transferID id.ID, items []TransferItem) error {
	r.items[transferID] = append([]TransferItem(nil), items...)
	return nil
}

func (r *memTransfers) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockTransfer], error) {
	result := domain.ListResult[*StockTransfer]{Limit: filter.Limit, Offset: filter.Offset}
	for _, t := range r.transfers {
		result.Items = append(result.Items, r.clone(t))
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memTransfers) GetForUpdate(ctx context.Context, transferID id.ID) (*StockTransfer, error) {
	return r.GetByID(ctx, transferID)
}

type memMovements struct {
	rows []*movement.LotMovement
}

func (m *memMovements) Append(ctx context.Context, mv *movement.LotMovement) error {
	m.rows = append(m.rows, mv)
	return nil
}

func (m *memMovements) byReference(refID id.ID) []*movement.LotMovement {
	var out []*movement.LotMovement
	for _, mv := range m.rows {
		if mv.ReferenceID != nil && *mv.ReferenceID == refID {
			out = append(out, mv)
		}
	}
	return out
}

// rollbackTxManager restores the lot store when the body fails, mimicking a
// real transaction rollback.
type rollbackTxManager struct {
	lots      *memLots
	movements *memMovements
}

func (m *rollbackTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	lotSnap := m.lots.snapshot()
	mvSnap := len(m.movements.rows)
	if err := fn(ctx); err != nil {
		m.lots.lots = lotSnap
		m.movements.rows = m.movements.rows[:mvSnap]
		return err
	}
	return nil
}

// --- fixture ---

type fixture struct {
	svc       *Service
	lots      *memLots
	transfers *memTransfers
	movements *memMovements

	productID id.ID
	fromWH    id.ID
	toWH      id.ID
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		lots:      newMemLots(),
		transfers: newMemTransfers(),
		movements: &memMovements{},
		productID: id.New(),
		fromWH:    id.New(),
		toWH:      id.New(),
	}
	txm := &rollbackTxManager{lots: f.lots, movements: f.movements}
	f.svc = NewService(f.transfers, f.lots, f.movements, &numerator.MockGenerator{},
		txm, audit.NopRecorder{}, cfg)
	return f
}

func (f *fixture) addLot(number string, receivedDay int, qty int64, cost string) *lot.Lot {
	l := lot.New(f.productID, f.fromWH)
	l.LotNumber = number
	l.ProductName = "Widget"
	l.Quantity = types.NewQuantityFromInt(qty)
	l.ReceivedDate = time.Date(2024, time.May, receivedDay, 0, 0, 0, 0, time.UTC)
	l.CostPerUnit = types.MustMoney(cost)
	l.Currency = "USD"
	f.lots.lots[l.ID] = l
	return l
}

func (f *fixture) createTransfer(t *testing.T, requested int64) *StockTransfer {
	t.Helper()
	tr := New(f.fromWH, f.toWH)
	tr.AddItem(f.productID, "Widget", types.NewQuantityFromInt(requested))
	require.NoError(t, f.svc.Create(testCtx(), tr))
	return tr
}

func testCtx() context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{ID: "user-1"})
}

// --- tests ---

func TestService_Create(t *testing.T) {
	f := newFixture(t, Config{})

	tr := f.createTransfer(t, 10)

	assert.Equal(t, fmt.Sprintf("TRF-%d-0001", time.Now().Year()), tr.TransferNumber)
	assert.Equal(t, StatusPending, tr.Status)
	assert.Equal(t, "user-1", tr.CreatedBy)

	stored, err := f.svc.GetByID(testCtx(), tr.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, tr.ID, stored.Items[0].TransferID)
}

func TestService_Ship_FIFOAcrossLots(t *testing.T) {
	f := newFixture(t, Config{})
	older := f.addLot("LOT-202405-0001", 1, 100, "2.00")
	newer := f.addLot("LOT-202405-0002", 20, 50, "3.00")
	tr := f.createTransfer(t, 120)

	shipped, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusInTransit, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)
	require.Len(t, shipped.Items, 1)
	item := shipped.Items[0]
	assert.Equal(t, types.NewQuantityFromInt(120), item.ShippedQuantity)

	// Older lot drained fully and marked consumed; newer keeps the rest.
	drained := f.lots.lots[older.ID]
	assert.True(t, drained.Quantity.IsZero())
	assert.Equal(t, lot.StatusConsumed, drained.Status)
	assert.Equal(t, types.NewQuantityFromInt(30), f.lots.lots[newer.ID].Quantity)

	// Weighted-average cost: (100*2.00 + 20*3.00) / 120.
	expected := types.MustMoney("260").Div(types.MustMoney("120"))
	assert.True(t, item.UnitCost.Equal(expected), "got %s", item.UnitCost)
	assert.Equal(t, "USD", item.Currency)

	// Two negative transfer movements referencing the transfer.
	mvs := f.movements.byReference(tr.ID)
	require.Len(t, mvs, 2)
	var total types.Quantity
	for _, mv := range mvs {
		assert.Equal(t, movement.TypeTransfer, mv.Type)
		assert.True(t, mv.Quantity.IsNegative())
		total += mv.Quantity
	}
	assert.Equal(t, types.NewQuantityFromInt(-120), total)
}

// TestService_Ship_PreservesForeignReservation ships exactly the unreserved
// stock of a lot that also carries someone else's hold. The hold must survive
// the shipment untouched.
func TestService_Ship_PreservesForeignReservation(t *testing.T) {
	f := newFixture(t, Config{})
	held := f.addLot("LOT-202405-0001", 1, 100, "2.00")
	held.ReservedQuantity = types.NewQuantityFromInt(30)
	tr := f.createTransfer(t, 70)

	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)

	after := f.lots.lots[held.ID]
	assert.Equal(t, types.NewQuantityFromInt(30), after.Quantity)
	assert.Equal(t, types.NewQuantityFromInt(30), after.ReservedQuantity)
	assert.True(t, after.AvailableQuantity().IsZero())
	assert.Equal(t, lot.StatusAvailable, after.Status)
}

// TestService_Ship_ReservedStockNotAllocatable asks for one unit more than the
// unreserved quantity: the reservation must not be raided to cover it.
func TestService_Ship_ReservedStockNotAllocatable(t *testing.T) {
	f := newFixture(t, Config{})
	held := f.addLot("LOT-202405-0001", 1, 100, "2.00")
	held.ReservedQuantity = types.NewQuantityFromInt(30)
	tr := f.createTransfer(t, 71)

	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, types.NewQuantityFromInt(100), f.lots.lots[held.ID].Quantity)
}

func TestService_Ship_InsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t, Config{})
	f.addLot("LOT-202405-0001", 1, 100, "2.00")

	// Second item has no stock at all, so the first item's allocation must
	// be rolled back too.
	otherProduct := id.New()
	tr := New(f.fromWH, f.toWH)
	tr.AddItem(f.productID, "Widget", types.NewQuantityFromInt(50))
	tr.AddItem(otherProduct, "Gadget", types.NewQuantityFromInt(10))
	require.NoError(t, f.svc.Create(testCtx(), tr))

	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

	// No lot touched, no movement written, transfer still pending.
	assert.Equal(t, types.NewQuantityFromInt(100), f.lots.totalAt(f.productID, f.fromWH))
	assert.Empty(t, f.movements.byReference(tr.ID))
	stored, err := f.svc.GetByID(testCtx(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestService_Ship_RequiresPending(t *testing.T) {
	f := newFixture(t, Config{})
	f.addLot("LOT-202405-0001", 1, 100, "2.00")
	tr := f.createTransfer(t, 10)

	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)

	_, err = f.svc.Ship(testCtx(), tr.ID)
	require.True(t, apperror.IsInvalidTransition(err))
}

func TestService_Receive_FullCreatesDestinationLot(t *testing.T) {
	f := newFixture(t, Config{})
	f.addLot("LOT-202405-0001", 1, 100, "2.50")
	tr := f.createTransfer(t, 60)
	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)

	received, err := f.svc.Receive(testCtx(), tr.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, received.Status)
	require.NotNil(t, received.ReceivedAt)
	assert.Equal(t, types.NewQuantityFromInt(60), received.Items[0].ReceivedQuantity)

	destLots := f.lots.at(f.toWH)
	require.Len(t, destLots, 1)
	dest := destLots[0]
	assert.Equal(t, types.NewQuantityFromInt(60), dest.Quantity)
	assert.Equal(t, lot.StatusAvailable, dest.Status)
	assert.NotEmpty(t, dest.LotNumber)
	// Cost carry-over is off: destination lot starts unvalued.
	assert.True(t, dest.CostPerUnit.IsZero())

	// Stock is conserved: source lost 60, destination gained 60.
	assert.Equal(t, types.NewQuantityFromInt(40), f.lots.totalAt(f.productID, f.fromWH))
	assert.Equal(t, types.NewQuantityFromInt(60), f.lots.totalAt(f.productID, f.toWH))
}

func TestService_Receive_CarryOverCost(t *testing.T) {
	f := newFixture(t, Config{CarryOverCost: true})
	f.addLot("LOT-202405-0001", 1, 100, "2.50")
	tr := f.createTransfer(t, 60)
	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)

	_, err = f.svc.Receive(testCtx(), tr.ID, nil)
	require.NoError(t, err)

	dest := f.lots.at(f.toWH)[0]
	assert.True(t, dest.CostPerUnit.Equal(types.MustMoney("2.50")), "got %s", dest.CostPerUnit)
	assert.Equal(t, "USD", dest.Currency)
}

func TestService_Receive_PartialWritesDiscrepancy(t *testing.T) {
	f := newFixture(t, Config{})
	f.addLot("LOT-202405-0001", 1, 100, "2.00")
	tr := f.createTransfer(t, 60)
	shipped, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)
	itemID := shipped.Items[0].ID

	received, err := f.svc.Receive(testCtx(), tr.ID, map[id.ID]types.Quantity{
		itemID: types.NewQuantityFromInt(45),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(45), received.Items[0].ReceivedQuantity)

	// Destination lot holds only what arrived.
	assert.Equal(t, types.NewQuantityFromInt(45), f.lots.totalAt(f.productID, f.toWH))

	// The 15 lost in transit is recorded as a lot-less adjust movement.
	var discrepancy *movement.LotMovement
	for _, mv := range f.movements.byReference(tr.ID) {
		if mv.Type == movement.TypeAdjust {
			discrepancy = mv
		}
	}
	require.NotNil(t, discrepancy)
	assert.Nil(t, discrepancy.LotID)
	assert.Equal(t, types.NewQuantityFromInt(-15), discrepancy.Quantity)
	assert.Equal(t, "transit shortfall", discrepancy.Reason)
}

func TestService_Receive_OverShippedRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.addLot("LOT-202405-0001", 1, 100, "2.00")
	tr := f.createTransfer(t, 60)
	shipped, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)

	_, err = f.svc.Receive(testCtx(), tr.ID, map[id.ID]types.Quantity{
		shipped.Items[0].ID: types.NewQuantityFromInt(61),
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestService_Receive_RequiresInTransit(t *testing.T) {
	f := newFixture(t, Config{})
	tr := f.createTransfer(t, 10)

	_, err := f.svc.Receive(testCtx(), tr.ID, nil)
	require.True(t, apperror.IsInvalidTransition(err))
}

func TestService_Cancel_Pending(t *testing.T) {
	f := newFixture(t, Config{})
	tr := f.createTransfer(t, 10)

	cancelled, err := f.svc.Cancel(testCtx(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Empty(t, f.movements.byReference(tr.ID))
}

func TestService_Cancel_InTransitRestocksExistingLot(t *testing.T) {
	f := newFixture(t, Config{})
	// Two lots: ship drains the older fully, the newer keeps 40 available,
	// so the return lands in the surviving lot.
	f.addLot("LOT-202405-0001", 1, 60, "2.00")
	survivor := f.addLot("LOT-202405-0002", 20, 100, "2.00")
	tr := f.createTransfer(t, 120)
	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)
	require.Equal(t, types.NewQuantityFromInt(40), f.lots.totalAt(f.productID, f.fromWH))

	cancelled, err := f.svc.Cancel(testCtx(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// All 120 shipped units are back at the source.
	assert.Equal(t, types.NewQuantityFromInt(160), f.lots.totalAt(f.productID, f.fromWH))
	assert.Equal(t, types.NewQuantityFromInt(160), f.lots.lots[survivor.ID].Quantity)

	var returned *movement.LotMovement
	for _, mv := range f.movements.byReference(tr.ID) {
		if mv.Type == movement.TypeAdjust {
			returned = mv
		}
	}
	require.NotNil(t, returned)
	assert.Equal(t, "cancellation return", returned.Reason)
	assert.Equal(t, types.NewQuantityFromInt(120), returned.Quantity)
}

func TestService_Cancel_InTransitCreatesReturnLot(t *testing.T) {
	f := newFixture(t, Config{})
	// Single lot drained fully by the shipment: no restock target remains.
	f.addLot("LOT-202405-0001", 1, 80, "2.00")
	tr := f.createTransfer(t, 80)
	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(testCtx(), tr.ID)
	require.NoError(t, err)

	var ret *lot.Lot
	for _, l := range f.lots.at(f.fromWH) {
		if l.LotNumber == "RET-"+tr.TransferNumber+"-01" {
			ret = l
		}
	}
	require.NotNil(t, ret, "expected a return lot")
	assert.Equal(t, types.NewQuantityFromInt(80), ret.Quantity)
	assert.Equal(t, lot.StatusAvailable, ret.Status)
	assert.True(t, ret.CostPerUnit.Equal(types.MustMoney("2.00")))
}

func TestService_Cancel_RejectedWhenCompleted(t *testing.T) {
	f := newFixture(t, Config{})
	f.addLot("LOT-202405-0001", 1, 100, "2.00")
	tr := f.createTransfer(t, 10)
	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)
	_, err = f.svc.Receive(testCtx(), tr.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Cancel(testCtx(), tr.ID)
	require.True(t, apperror.IsInvalidTransition(err))
}

// TestService_EndToEnd walks the full lifecycle and checks stock conservation
// at every step.
func TestService_EndToEnd(t *testing.T) {
	f := newFixture(t, Config{CarryOverCost: true})
	f.addLot("LOT-202405-0001", 1, 100, "1.00")
	f.addLot("LOT-202405-0002", 15, 50, "4.00")

	tr := f.createTransfer(t, 120)

	_, err := f.svc.Ship(testCtx(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(30), f.lots.totalAt(f.productID, f.fromWH))

	received, err := f.svc.Receive(testCtx(), tr.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(120), f.lots.totalAt(f.productID, f.toWH))

	// Weighted cost carried over: (100*1 + 20*4)/120 = 1.5.
	dest := f.lots.at(f.toWH)[0]
	assert.True(t, dest.CostPerUnit.Equal(types.MustMoney("1.5")), "got %s", dest.CostPerUnit)

	// Global stock is conserved across the whole flow.
	total := f.lots.totalAt(f.productID, f.fromWH) + f.lots.totalAt(f.productID, f.toWH)
	assert.Equal(t, types.NewQuantityFromInt(150), total)

	assert.Equal(t, StatusCompleted, received.Status)
}
