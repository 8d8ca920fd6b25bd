// Package numerator provides the PostgreSQL implementation of document
// auto-numbering. It implements the core/numerator.Generator contract.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "lotkeeper/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierResolver returns the querier to use for the given request context.
// Wire this to the transaction-aware querier so numbers are issued inside
// the caller's transaction when one is active.
type QuerierResolver func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering backed by the sys_sequences table.
type Service struct {
	staticQuerier Querier
	resolver      QuerierResolver

	// cacheMu protects ranges map
	cacheMu sync.Mutex
	// ranges stores active ranges for each key (Cached strategy only)
	ranges map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service with a static querier.
// Use for simple wiring and tests.
func New(querier Querier) *Service {
	return &Service{
		staticQuerier: querier,
		ranges:        make(map[string]*cachedRange),
	}
}

// NewWithResolver creates a numerator service that resolves its querier per
// request, so numbering joins an in-flight transaction when present.
func NewWithResolver(resolver QuerierResolver) *Service {
	return &Service{
		resolver: resolver,
		ranges:   make(map[string]*cachedRange),
	}
}

func (s *Service) getQuerier(ctx context.Context) Querier {
	if s.resolver != nil {
		return s.resolver(ctx)
	}
	return s.staticQuerier
}

// GetNextNumber generates the next document number.
// Pattern: TRF-2024-0001 (yearly reset) or LOT-202405-0001 (monthly reset,
// with the sequence scoped per product via Config.Scope).
//
// Supports Strict (DB-level) and Cached (Memory-level) strategies.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := buildKey(cfg, period)
	var num int64
	var err error

	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, key, opts)
	case corenumerator.StrategyStrict:
		fallthrough
	default:
		num, err = s.getNextStrict(ctx, key)
	}

	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

// getNextStrict fetches the next number directly from DB using UPSERT + RETURNING.
func (s *Service) getNextStrict(ctx context.Context, key string) (int64, error) {
	querier := s.getQuerier(ctx)
	var num int64

	err := querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, key).Scan(&num)

	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// getNextCached fetches next number from memory, refilling from DB if needed.
func (s *Service) getNextCached(ctx context.Context, key string, opts *corenumerator.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	// allocate new range if needed
	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50 // default
		}

		querier := s.getQuerier(ctx)
		var newMax int64

		increment := size

		err := querier.QueryRow(ctx, `
            INSERT INTO sys_sequences (key, current_val)
            VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
            RETURNING current_val
		`, key, increment).Scan(&newMax)

		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		// newMax is the end of our range.
		// If row absent: INSERT ... VALUES (key, increment). Range is 1..increment.
		// If row present: current_val += increment. Range is (old_max + 1) .. new_max.

		rng.current = newMax - increment // one BEFORE the first valid number
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the next number value (for migration purposes).
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := buildKey(cfg, period)
	querier := s.getQuerier(ctx)

	var result int64
	err := querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	// Invalidate cached range for this key if one exists
	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	return err
}

// buildKey creates the sequence key based on config and period.
func buildKey(cfg corenumerator.Config, period time.Time) string {
	prefix := cfg.Prefix
	if cfg.Scope != "" {
		prefix = fmt.Sprintf("%s_%s", cfg.Prefix, cfg.Scope)
	}
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", prefix, period.Format("2006"))
	default:
		return prefix
	}
}

// formatNumber creates the final number string.
func formatNumber(cfg corenumerator.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 4
	}

	if cfg.IncludePeriod {
		periodPart := period.Format("2006")
		if cfg.ResetPeriod == "month" {
			periodPart = period.Format("200601")
		}
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, periodPart, padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the numeric part from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	var num int64
	patterns := []string{
		"%*[^-]-%*d-%d",
		"%*[^-]-%d",
	}

	for _, pattern := range patterns {
		if _, err := fmt.Sscanf(formatted, pattern, &num); err == nil {
			return num
		}
	}

	return -1
}
