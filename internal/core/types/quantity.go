// Package types provides common type aliases and utilities.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// ZeroMoney returns zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred constructor for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
//
// Rationale:
// - Matches Postgres NUMERIC(15,4) semantics without floating point errors
// - Easy to store as BIGINT in DB (scaled integer)
// - JSON remains a number with up to 4 decimals
type Quantity int64

const QuantityScale int64 = 10_000

func NewQuantityFromFloat64(v float64) Quantity {
	return Quantity(math.Round(v * float64(QuantityScale)))
}

func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

// NewQuantityFromInt creates a whole-unit quantity.
func NewQuantityFromInt(v int64) Quantity { return Quantity(v * QuantityScale) }

func (q Quantity) Int64Scaled() int64 { return int64(q) }

func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// Min returns the smaller of q and other.
func (q Quantity) Min(other Quantity) Quantity {
	if q < other {
		return q
	}
	return other
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	neg := q < 0
	v := q
	if neg {
		v = -v
	}
	intPart := int64(v) / QuantityScale
	frac := int64(v) % QuantityScale
	if neg {
		return fmt.Sprintf("-%d.%04d", intPart, frac)
	}
	return fmt.Sprintf("%d.%04d", intPart, frac)
}

// MarshalJSON encodes Quantity as JSON number (not string), preserving 4 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string and parses to fixed-point (4 digits).
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	// If string, unquote first.
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseQuantityString(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	// Otherwise treat as number token.
	parsed, err := parseQuantityString(string(data))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func parseQuantityString(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	// Exponent form is parsed via float as a fallback; plain decimals stay exact.
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse quantity: %w", err)
		}
		return NewQuantityFromFloat64(f), nil
	}

	sign := int64(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimPrefix(s, "+")
	}

	parts := strings.SplitN(s, ".", 2)
	intPartStr := parts[0]
	fracStr := ""
	if len(parts) == 2 {
		fracStr = parts[1]
	}

	if intPartStr == "" {
		intPartStr = "0"
	}
	intPart, err := strconv.ParseInt(intPartStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity integer part: %w", err)
	}

	// Normalize fractional part to 4 digits (pad right, truncate extra digits).
	if len(fracStr) > 4 {
		fracStr = fracStr[:4]
	}
	for len(fracStr) < 4 {
		fracStr += "0"
	}
	frac, err := strconv.ParseInt(fracStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity fractional part: %w", err)
	}

	return Quantity(sign * (intPart*QuantityScale + frac)), nil
}
