package transfer

import (
	"lotkeeper/internal/core/numerator"
)

// NumeratorStrategy for transfer numbers. Strict keeps TRF numbers gapless.
const NumeratorStrategy = numerator.StrategyStrict

// Config holds transfer behavior toggles.
type Config struct {
	// CarryOverCost makes receipt copy the shipped weighted-average unit cost
	// onto the destination lot. When false, destination lots start at zero
	// cost and costing is left to a downstream revaluation.
	CarryOverCost bool
}
