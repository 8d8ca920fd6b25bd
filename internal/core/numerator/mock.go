// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGenerator is a test implementation of Generator.
// Use in unit tests to avoid database dependencies.
type MockGenerator struct {
	GetNextNumberFunc func(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
	SetNextNumberFunc func(ctx context.Context, cfg Config, period time.Time, value int64) error

	mu       sync.Mutex
	counters map[string]int64
}

// GetNextNumber implements Generator.
// Default behavior keeps an in-memory counter per prefix+scope+period so
// tests get realistic sequential numbers.
func (m *MockGenerator) GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if m.GetNextNumberFunc != nil {
		return m.GetNextNumberFunc(ctx, cfg, opts, period)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}

	periodPart := period.Format("2006")
	if cfg.ResetPeriod == "month" {
		periodPart = period.Format("200601")
	}
	key := cfg.Prefix + "_" + cfg.Scope + "_" + periodPart
	m.counters[key]++

	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 4
	}
	if cfg.IncludePeriod {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, periodPart, padWidth, m.counters[key]), nil
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, m.counters[key]), nil
}

// SetNextNumber implements Generator.
func (m *MockGenerator) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	if m.SetNextNumberFunc != nil {
		return m.SetNextNumberFunc(ctx, cfg, period, value)
	}
	return nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
