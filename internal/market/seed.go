package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/lmsr"
	"github.com/polyjacket/market-engine/internal/model"
	"github.com/polyjacket/market-engine/internal/rating"
)

// Seed is the opening state for a new market: a share imbalance that makes
// the opening price equal the rating-implied win probability, and the
// tokens the house committed to buy that imbalance.
type Seed struct {
	B          decimal.Decimal
	HomeShares decimal.Decimal
	AwayShares decimal.Decimal
	HomePrice  decimal.Decimal
	AwayPrice  decimal.Decimal
	Volume     decimal.Decimal // seeding cost; real liquidity, not zero
	HomeRating float64
	AwayRating float64
}

// ComputeSeed converts two teams' ratings into an opening share imbalance.
// The favored side receives b*ln(p/(1-p)) shares with the underdog fixed
// at zero, so the opening price matches the rating-implied probability.
// The cost of those shares is recorded as the market's initial volume.
// Unknown teams carry the base rating and seed an even 50/50 book.
func ComputeSeed(mm *lmsr.MarketMaker, ratings rating.Table, sport, homeTeam, awayTeam string) Seed {
	rHome := ratings.Rating(sport, homeTeam)
	rAway := ratings.Rating(sport, awayTeam)
	pHome := rating.ExpectedWinProb(rHome, rAway)

	s := Seed{B: mm.B(), HomeRating: rHome, AwayRating: rAway}

	switch {
	case pHome > 0.5:
		s.HomeShares = mm.LogitShares(pHome)
	case pHome < 0.5:
		s.AwayShares = mm.LogitShares(1 - pHome)
	}

	favored := decimal.Max(s.HomeShares, s.AwayShares)
	s.Volume = mm.Cost(decimal.Zero, favored, decimal.Zero)
	s.HomePrice, s.AwayPrice = mm.Price(s.HomeShares, s.AwayShares)
	return s
}

// FromFixture builds a brand-new market from a fixture and its seed. The
// market id is derived from the game id so repeated sightings of the same
// fixture address the same market.
func FromFixture(f model.Fixture, seed Seed, now time.Time) *model.Market {
	m := &model.Market{
		ID:          MarketID(f.GameID),
		GameID:      f.GameID,
		HomeTeam:    f.HomeTeam,
		AwayTeam:    f.AwayTeam,
		Sport:       f.Sport,
		GameTime:    f.Time,
		GameDate:    f.Date,
		Status:      model.StatusOpen,
		B:           seed.B,
		HomeShares:  seed.HomeShares,
		AwayShares:  seed.AwayShares,
		HomePrice:   seed.HomePrice,
		AwayPrice:   seed.AwayPrice,
		TotalVolume: seed.Volume,
		HomeRating:  seed.HomeRating,
		AwayRating:  seed.AwayRating,
		CreatedAt:   now.UTC(),
	}
	ApplyFixture(m, f, now)
	return m
}

// MarketID is the deterministic market key for a game.
func MarketID(gameID string) string {
	return "market_" + gameID
}
