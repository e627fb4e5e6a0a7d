// Package solver finds the share quantity purchasable for a given token
// budget by bisecting the LMSR cost function. It is pure numeric code with
// no transport or persistence dependencies so it can be unit-tested in
// isolation.
package solver

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/lmsr"
)

var (
	// ErrTradeTooSmall is returned when the budget cannot buy a positive
	// share quantity within the solver's tolerance and iteration budget.
	ErrTradeTooSmall = errors.New("solver: amount too small to purchase shares")

	// ErrInvalidBudget is returned for a zero or negative budget.
	ErrInvalidBudget = errors.New("solver: budget must be positive")
)

const (
	// maxIterations caps the bisection loop so a pathological input can
	// never hang the per-market critical section.
	maxIterations = 100

	// costTolerance is the absolute token tolerance for matching the budget.
	costTolerance = 0.01

	// upperBoundMultiple sizes the bracket: one token can never buy more
	// than upperBoundMultiple shares of anything at the price floor.
	upperBoundMultiple = 10.0
)

// Result is a solved trade: the share quantity and its exact cost.
type Result struct {
	Shares decimal.Decimal
	Cost   decimal.Decimal
}

// SharesForBudget returns the largest delta >= 0 such that
// Cost(current, current+delta, other) <= budget, together with the exact
// cost of that delta.
//
// Bisection over delta in [0, upperBoundMultiple*budget], converging
// monotonically until the cost matches the budget within costTolerance or
// the iteration cap is hit. Terminates in bounded time for any input.
func SharesForBudget(mm *lmsr.MarketMaker, current, other, budget decimal.Decimal) (Result, error) {
	if budget.LessThanOrEqual(decimal.Zero) {
		return Result{}, ErrInvalidBudget
	}

	budgetF := budget.InexactFloat64()
	costAt := func(delta float64) float64 {
		return mm.Cost(current, current.Add(decimal.NewFromFloat(delta)), other).InexactFloat64()
	}

	low, high := 0.0, budgetF*upperBoundMultiple
	shares := 0.0

	for i := 0; i < maxIterations; i++ {
		mid := (low + high) / 2
		cost := costAt(mid)

		if math.Abs(cost-budgetF) < costTolerance {
			shares = mid
			break
		}
		if cost < budgetF {
			low = mid
			shares = mid
		} else {
			high = mid
		}
	}

	if shares <= 0 {
		return Result{}, ErrTradeTooSmall
	}

	sharesDec := decimal.NewFromFloat(shares).Round(lmsr.PriceScale)
	exactCost := mm.Cost(current, current.Add(sharesDec), other)
	if exactCost.LessThanOrEqual(decimal.Zero) {
		return Result{}, ErrTradeTooSmall
	}

	return Result{Shares: sharesDec, Cost: exactCost}, nil
}
