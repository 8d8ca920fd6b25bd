// Package numerator provides domain contracts for document auto-numbering.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	// Slower, suitable for accounting-grade documents.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if application restarts.
	// Suitable for internal documents.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "LOT", "TRF")
	Prefix string

	// Scope narrows the sequence beyond the prefix, e.g. a product id so
	// lot numbers restart per product. Empty scope means a global sequence.
	Scope string

	// IncludePeriod adds the period (year or year+month, per ResetPeriod)
	// to the formatted number
	IncludePeriod bool

	// PadWidth is the minimum number width (default 4)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// TransferConfig numbers stock transfers: TRF-2024-0001, sequential per year.
func TransferConfig() Config {
	return Config{
		Prefix:        "TRF",
		IncludePeriod: true,
		PadWidth:      4,
		ResetPeriod:   "year",
	}
}

// LotConfig numbers lots: LOT-202405-0001, sequential per product per month.
func LotConfig(productID string) Config {
	return Config{
		Prefix:        "LOT",
		Scope:         productID,
		IncludePeriod: true,
		PadWidth:      4,
		ResetPeriod:   "month",
	}
}
