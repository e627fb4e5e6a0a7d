// Package ledger maintains user positions: cost-weighted entry prices on
// the way in, mark-to-market and settlement payouts on the way out. All
// functions are pure; persistence belongs to the caller.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/lmsr"
	"github.com/polyjacket/market-engine/internal/model"
)

// NewPosition returns an empty position for a user in a market.
func NewPosition(userID, marketID string, now time.Time) *model.Position {
	return &model.Position{
		UserID:    userID,
		MarketID:  marketID,
		UpdatedAt: now.UTC(),
	}
}

// ApplyTrade folds a filled buy into the position. The average entry price
// is the cost-weighted running mean in tokens per share:
//
//	avg' = (avg*shares + cost) / (shares + filled)
func ApplyTrade(p *model.Position, side string, shares, cost decimal.Decimal, now time.Time) {
	switch side {
	case model.SideHome:
		p.AvgHomePrice = runningAvg(p.AvgHomePrice, p.HomeShares, shares, cost)
		p.HomeShares = p.HomeShares.Add(shares)
	case model.SideAway:
		p.AvgAwayPrice = runningAvg(p.AvgAwayPrice, p.AwayShares, shares, cost)
		p.AwayShares = p.AwayShares.Add(shares)
	}
	p.UpdatedAt = now.UTC()
}

func runningAvg(oldAvg, oldShares, filled, cost decimal.Decimal) decimal.Decimal {
	newShares := oldShares.Add(filled)
	if newShares.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	total := oldAvg.Mul(oldShares).Add(cost)
	return total.Div(newShares).Round(lmsr.PriceScale)
}

// Value marks a position to market. For settled markets it is the payout:
// one token per winning-side share, nothing on the losing side or a voided
// result. For live markets it is the liquidation value of both sides, what
// the market maker would actually pay to buy the shares back, which by
// convexity is below shares*price.
func Value(p *model.Position, m *model.Market, mm *lmsr.MarketMaker) decimal.Decimal {
	if m.Status == model.StatusSettled {
		return Payout(p, m)
	}
	home := mm.SellValue(p.HomeShares, m.HomeShares, m.AwayShares)
	away := mm.SellValue(p.AwayShares, m.AwayShares, m.HomeShares)
	return home.Add(away)
}

// Payout returns the settlement credit for a position: the winning side's
// share count, one token per share. Unsettled markets and voided results
// (winner unset) pay zero.
func Payout(p *model.Position, m *model.Market) decimal.Decimal {
	if m.Status != model.StatusSettled {
		return decimal.Zero
	}
	switch m.Winner {
	case model.SideHome:
		return p.HomeShares
	case model.SideAway:
		return p.AwayShares
	default:
		return decimal.Zero
	}
}

// CostBasis returns the total tokens the position's holder has paid in.
func CostBasis(p *model.Position) decimal.Decimal {
	home := p.AvgHomePrice.Mul(p.HomeShares)
	away := p.AvgAwayPrice.Mul(p.AwayShares)
	return home.Add(away).Round(lmsr.PriceScale)
}
