package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "lotkeeper/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64 // Simulates DB sequence value
	lastKey      string
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Strict passes (key); Cached passes (key, increment).
	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}
	if len(args) > 0 {
		if key, ok := args[0].(string); ok {
			m.lastKey = key
		}
	}

	m.currentValue += increment

	return &mockRow{val: m.currentValue}
}

func fixedPeriod(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC)
}

func TestGetNextNumber_TransferStrict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.TransferConfig()
	period := fixedPeriod(t)

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2024-0001" {
		t.Errorf("expected TRF-2024-0001, got %s", num)
	}
	if q.lastKey != "TRF_2024" {
		t.Errorf("expected sequence key TRF_2024, got %s", q.lastKey)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2024-0002" {
		t.Errorf("expected TRF-2024-0002, got %s", num)
	}
}

func TestGetNextNumber_LotScopedPerProduct(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	period := fixedPeriod(t)

	cfg := corenumerator.LotConfig("prod-1")

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "LOT-202405-0001" {
		t.Errorf("expected LOT-202405-0001, got %s", num)
	}
	if q.lastKey != "LOT_prod-1_2024_05" {
		t.Errorf("expected sequence key LOT_prod-1_2024_05, got %s", q.lastKey)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.TransferConfig()
	period := fixedPeriod(t)

	opts := &corenumerator.Options{
		Strategy:  corenumerator.StrategyCached,
		RangeSize: 10,
	}

	// First call allocates 1..10 from DB; DB value becomes 10, we get 1.
	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2024-0001" {
		t.Errorf("expected TRF-2024-0001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to be 10, got %d", q.currentValue)
	}

	// Second call served from memory, DB unchanged.
	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2024-0002" {
		t.Errorf("expected TRF-2024-0002, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to stay 10, got %d", q.currentValue)
	}

	// Exhaust the range, next call refills from DB.
	for i := 0; i < 8; i++ {
		_, _ = svc.GetNextNumber(ctx, cfg, opts, period)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TRF-2024-0011" {
		t.Errorf("expected TRF-2024-0011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value to be 20, got %d", q.currentValue)
	}
}

func TestParseNumber(t *testing.T) {
	if got := ParseNumber("TRF-2024-0042"); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := ParseNumber("garbage"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}
