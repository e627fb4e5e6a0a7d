// Package lmsr implements the Logarithmic Market Scoring Rule (LMSR)
// automated market maker for binary game-outcome markets (home win vs
// away win).
//
// The LMSR was proposed by Robin Hanson and provides:
//   - Bounded loss for the market maker (capped at b * ln(2) tokens)
//   - Continuous pricing with infinite liquidity
//   - Path-independent cost function
//
// Prices are quoted on a 0–100 scale and always sum to 100. All monetary
// values use shopspring/decimal — never float64 for money. Internal
// transcendental math uses the log-sum-exp trick for numerical stability,
// with results immediately converted to decimal.
//
// Reference: Hanson, R. (2003) "Combinatorial Information Market Design"
package lmsr

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidLiquidity is returned when b <= 0.
var ErrInvalidLiquidity = errors.New("lmsr: liquidity parameter b must be positive")

// PriceScale is the number of decimal places for price/cost rounding.
const PriceScale int32 = 8

var (
	fifty   = decimal.NewFromInt(50)
	hundred = decimal.NewFromInt(100)
)

// MarketMaker implements the LMSR cost function for binary outcome markets.
// It is stateless — market share quantities are passed as arguments, not
// stored.
type MarketMaker struct {
	b decimal.Decimal
}

// NewMarketMaker creates an LMSR market maker with the given liquidity
// parameter b. Higher b → more liquidity, lower price impact per trade.
func NewMarketMaker(b decimal.Decimal) (*MarketMaker, error) {
	if b.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidLiquidity
	}
	return &MarketMaker{b: b}, nil
}

// B returns the liquidity parameter.
func (m *MarketMaker) B() decimal.Decimal {
	return m.b
}

// logSumExp computes ln(exp(x) + exp(y)) using max-subtraction so that
// neither exp argument exceeds 0. Without this, exp overflows float64
// when its argument passes ~709.
func logSumExp(x, y float64) float64 {
	maxVal := math.Max(x, y)
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}
	return maxVal + math.Log(math.Exp(x-maxVal)+math.Exp(y-maxVal))
}

// Price computes the instantaneous prices for both outcomes on a 0–100
// scale:
//
//	pHome = 100 * exp(home/b) / (exp(home/b) + exp(away/b))
//	pAway = 100 - pHome
//
// This is the softmax function with max-subtraction for stability. On
// degenerate input (non-finite share totals) it falls back to (50, 50);
// price display must never error.
func (m *MarketMaker) Price(homeShares, awayShares decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	bf := m.b.InexactFloat64()
	h := homeShares.InexactFloat64() / bf
	a := awayShares.InexactFloat64() / bf

	maxVal := math.Max(h, a)
	if math.IsNaN(maxVal) || math.IsInf(maxVal, 0) {
		return fifty, fifty
	}

	expHome := math.Exp(h - maxVal)
	expAway := math.Exp(a - maxVal)

	p := 100 * expHome / (expHome + expAway)
	if math.IsNaN(p) {
		return fifty, fifty
	}

	pHome := decimal.NewFromFloat(p).Round(PriceScale)
	return pHome, hundred.Sub(pHome)
}

// Cost computes the tokens required to move one side's share total from
// `from` to `to` while the other side holds at `other`:
//
//	cost = b*ln(exp(to/b) + exp(other/b)) - b*ln(exp(from/b) + exp(other/b))
//
// The result is clamped to >= 0. Cost is strictly increasing and convex
// in `to`, which is what forbids buy-then-sell arbitrage cycles.
func (m *MarketMaker) Cost(from, to, other decimal.Decimal) decimal.Decimal {
	bf := m.b.InexactFloat64()
	o := other.InexactFloat64() / bf

	before := bf * logSumExp(from.InexactFloat64()/bf, o)
	after := bf * logSumExp(to.InexactFloat64()/bf, o)

	cost := after - before
	if math.IsNaN(cost) || cost < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(cost).Round(PriceScale)
}

// SellValue computes the tokens a holder would receive for selling
// userShares of one side back to the market maker: the cost of moving that
// side from `current` down to `current - userShares`. By convexity this is
// always <= what the shares originally cost to buy.
func (m *MarketMaker) SellValue(userShares, current, other decimal.Decimal) decimal.Decimal {
	if userShares.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return m.Cost(current.Sub(userShares), current, other)
}

// LogitShares inverts the price function: the share imbalance that makes
// the favored side's price equal prob (a probability in (0,1)) while the
// other side sits at zero shares:
//
//	shares = b * ln(prob / (1 - prob))
//
// Used to seed opening odds from rating-implied win probabilities. Returns
// zero for prob <= 0.5 or out-of-range input (no favorite → no imbalance).
func (m *MarketMaker) LogitShares(prob float64) decimal.Decimal {
	if math.IsNaN(prob) || prob <= 0.5 || prob >= 1 {
		return decimal.Zero
	}
	shares := m.b.InexactFloat64() * math.Log(prob/(1-prob))
	return decimal.NewFromFloat(shares).Round(PriceScale)
}

// MaxLoss returns the maximum possible loss for the market maker:
// b * ln(2) for binary markets.
func (m *MarketMaker) MaxLoss() decimal.Decimal {
	loss := m.b.InexactFloat64() * math.Log(2)
	return decimal.NewFromFloat(loss).Round(PriceScale)
}
