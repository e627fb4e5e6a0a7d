package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/lmsr"
	"github.com/polyjacket/market-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var now = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

func TestApplyTrade_FirstBuySetsAverage(t *testing.T) {
	p := NewPosition("u1", "market_g1", now)
	ApplyTrade(p, model.SideHome, d(100), d(55), now)

	if !p.HomeShares.Equal(d(100)) {
		t.Errorf("home shares: want 100, got %s", p.HomeShares)
	}
	// 55 tokens for 100 shares → 0.55 tokens per share.
	if !p.AvgHomePrice.Equal(d(0.55)) {
		t.Errorf("avg home price: want 0.55, got %s", p.AvgHomePrice)
	}
	if !p.AwayShares.IsZero() {
		t.Errorf("away side should be untouched, got %s", p.AwayShares)
	}
}

func TestApplyTrade_RunningAverage(t *testing.T) {
	p := NewPosition("u1", "market_g1", now)
	ApplyTrade(p, model.SideHome, d(100), d(50), now)
	ApplyTrade(p, model.SideHome, d(100), d(70), now)

	// (0.50*100 + 70) / 200 = 0.60.
	if !p.AvgHomePrice.Equal(d(0.6)) {
		t.Errorf("avg home price: want 0.60, got %s", p.AvgHomePrice)
	}
	if !p.HomeShares.Equal(d(200)) {
		t.Errorf("home shares: want 200, got %s", p.HomeShares)
	}
}

func TestApplyTrade_SidesIndependent(t *testing.T) {
	p := NewPosition("u1", "market_g1", now)
	ApplyTrade(p, model.SideHome, d(50), d(30), now)
	ApplyTrade(p, model.SideAway, d(80), d(32), now)

	if !p.AvgHomePrice.Equal(d(0.6)) || !p.AvgAwayPrice.Equal(d(0.4)) {
		t.Errorf("averages cross-contaminated: home=%s away=%s",
			p.AvgHomePrice, p.AvgAwayPrice)
	}
}

func TestPayout(t *testing.T) {
	p := NewPosition("u1", "market_g1", now)
	ApplyTrade(p, model.SideHome, d(120), d(60), now)
	ApplyTrade(p, model.SideAway, d(30), d(12), now)

	m := &model.Market{Status: model.StatusSettled, Winner: model.SideHome}
	if got := Payout(p, m); !got.Equal(d(120)) {
		t.Errorf("home win should pay home shares: want 120, got %s", got)
	}

	m.Winner = model.SideAway
	if got := Payout(p, m); !got.Equal(d(30)) {
		t.Errorf("away win should pay away shares: want 30, got %s", got)
	}

	// Voided result: winner unset, nobody gets paid.
	m.Winner = ""
	if got := Payout(p, m); !got.IsZero() {
		t.Errorf("voided result should pay zero, got %s", got)
	}

	// Not settled yet: no payout regardless of winner field.
	m.Status = model.StatusClosed
	m.Winner = model.SideHome
	if got := Payout(p, m); !got.IsZero() {
		t.Errorf("unsettled market should pay zero, got %s", got)
	}
}

func TestValue_LiveMarketUsesLiquidationNotSharesTimesPrice(t *testing.T) {
	mm, _ := lmsr.NewMarketMaker(d(100))

	m := &model.Market{
		Status:     model.StatusOpen,
		HomeShares: d(150),
		AwayShares: d(20),
	}
	m.HomePrice, m.AwayPrice = mm.Price(m.HomeShares, m.AwayShares)

	p := NewPosition("u1", "market_g1", now)
	p.HomeShares = d(150)

	got := Value(p, m, mm)
	naive := p.HomeShares.Mul(m.HomePrice)

	if got.LessThanOrEqual(decimal.Zero) {
		t.Fatalf("live position with shares should have positive value, got %s", got)
	}
	// Liquidating walks the price down, so the realizable value is strictly
	// below shares at the instantaneous price.
	if !got.LessThan(naive) {
		t.Errorf("liquidation value %s should be below shares*price %s", got, naive)
	}

	want := mm.SellValue(p.HomeShares, m.HomeShares, m.AwayShares)
	if !got.Equal(want) {
		t.Errorf("value mismatch: want %s, got %s", want, got)
	}
}

func TestValue_SettledMarketIsPayout(t *testing.T) {
	mm, _ := lmsr.NewMarketMaker(d(100))
	m := &model.Market{Status: model.StatusSettled, Winner: model.SideAway}

	p := NewPosition("u1", "market_g1", now)
	p.HomeShares = d(90)
	p.AwayShares = d(40)

	if got := Value(p, m, mm); !got.Equal(d(40)) {
		t.Errorf("settled value should equal payout: want 40, got %s", got)
	}
}

func TestCostBasis(t *testing.T) {
	p := NewPosition("u1", "market_g1", now)
	ApplyTrade(p, model.SideHome, d(100), d(50), now)
	ApplyTrade(p, model.SideAway, d(50), d(20), now)

	if got := CostBasis(p); !got.Equal(d(70)) {
		t.Errorf("cost basis: want 70, got %s", got)
	}
}

func TestEmptyPosition(t *testing.T) {
	p := NewPosition("u1", "market_g1", now)
	if !p.Empty() {
		t.Error("fresh position should be empty")
	}
	ApplyTrade(p, model.SideHome, d(1), d(0.5), now)
	if p.Empty() {
		t.Error("position with shares should not be empty")
	}
}
