// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal — never float64 for money.
// Skill ratings are not money and stay float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market statuses. Transitions are one-directional:
// open → closed → settled. Settled never reopens.
const (
	StatusOpen    = "open"
	StatusClosed  = "closed"
	StatusSettled = "settled"
)

// Trade sides / market outcomes.
const (
	SideHome = "home"
	SideAway = "away"
)

// Fixture is one inbound game record from the schedule feed. Scores arrive
// as raw text ("--" until played); dates and times as the feed formats them.
type Fixture struct {
	GameID    string `json:"game_id"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore string `json:"home_score"`
	AwayScore string `json:"away_score"`
	Time      string `json:"time"`
	Date      string `json:"date,omitempty"`
	Sport     string `json:"sport"`
	Status    string `json:"status"` // scheduled, completed, forfeit, unknown
	Location  string `json:"location,omitempty"`
	League    string `json:"league,omitempty"`
}

// Market is a binary prediction market on one game: home wins vs away wins.
// HomeShares/AwayShares are the cumulative AMM outcome quantities; seeding
// may start them non-zero. Prices are on a 0–100 scale and always sum to 100.
type Market struct {
	ID          string          `json:"market_id" db:"market_id"`
	GameID      string          `json:"game_id" db:"game_id"`
	HomeTeam    string          `json:"home_team" db:"home_team"`
	AwayTeam    string          `json:"away_team" db:"away_team"`
	Sport       string          `json:"sport" db:"sport"`
	GameTime    string          `json:"game_time" db:"game_time"`
	GameDate    string          `json:"game_date" db:"game_date"`
	Status      string          `json:"status" db:"status"`
	HomeShares  decimal.Decimal `json:"home_shares" db:"home_shares"`
	AwayShares  decimal.Decimal `json:"away_shares" db:"away_shares"`
	B           decimal.Decimal `json:"b" db:"b"` // LMSR liquidity parameter
	HomePrice   decimal.Decimal `json:"home_price" db:"home_price"`
	AwayPrice   decimal.Decimal `json:"away_price" db:"away_price"`
	TotalVolume decimal.Decimal `json:"total_volume" db:"total_volume"` // tokens paid in; never decreases
	Winner      string          `json:"winner,omitempty" db:"winner"`   // "home", "away", or "" (unset)
	HomeScore   string          `json:"home_score,omitempty" db:"home_score"`
	AwayScore   string          `json:"away_score,omitempty" db:"away_score"`
	HomeRating  float64         `json:"home_rating,omitempty" db:"home_rating"`
	AwayRating  float64         `json:"away_rating,omitempty" db:"away_rating"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	SettledAt   *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
}

// Position is one user's aggregate holdings in one market. Average entry
// prices are cost-weighted running means in tokens per share.
type Position struct {
	UserID       string          `json:"user_id" db:"user_id"`
	MarketID     string          `json:"market_id" db:"market_id"`
	HomeShares   decimal.Decimal `json:"home_shares" db:"home_shares"`
	AwayShares   decimal.Decimal `json:"away_shares" db:"away_shares"`
	AvgHomePrice decimal.Decimal `json:"avg_home_price" db:"avg_home_price"`
	AvgAwayPrice decimal.Decimal `json:"avg_away_price" db:"avg_away_price"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Empty reports whether the position holds no shares on either side.
// A position with zero shares both sides is logically absent.
func (p *Position) Empty() bool {
	return p.HomeShares.IsZero() && p.AwayShares.IsZero()
}

// PriceSnapshot is one append-only point of a market's price history,
// written after every trade and at seeding.
type PriceSnapshot struct {
	MarketID    string          `json:"market_id" db:"market_id"`
	HomePrice   decimal.Decimal `json:"home_price" db:"home_price"`
	AwayPrice   decimal.Decimal `json:"away_price" db:"away_price"`
	HomeShares  decimal.Decimal `json:"home_shares" db:"home_shares"`
	AwayShares  decimal.Decimal `json:"away_shares" db:"away_shares"`
	TotalVolume decimal.Decimal `json:"total_volume" db:"total_volume"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
}

// User holds the token balance for one account. Balances clamp to a
// non-negative floor on write (store responsibility).
type User struct {
	ID        string          `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
