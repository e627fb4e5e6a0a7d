package solver

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/lmsr"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func maker(t *testing.T, b float64) *lmsr.MarketMaker {
	t.Helper()
	mm, err := lmsr.NewMarketMaker(d(b))
	if err != nil {
		t.Fatalf("NewMarketMaker: %v", err)
	}
	return mm
}

func TestSharesForBudget_FiftyTokensOnFreshMarket(t *testing.T) {
	mm := maker(t, 100)

	res, err := SharesForBudget(mm, d(0), d(0), d(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Shares.LessThanOrEqual(decimal.Zero) {
		t.Fatalf("expected positive share quantity, got %s", res.Shares)
	}
	if res.Cost.Sub(d(50)).Abs().GreaterThan(d(0.01)) {
		t.Errorf("cost should match budget within tolerance: got %s", res.Cost)
	}

	// Post-trade the bought side must be above 50 and the other below.
	pHome, pAway := mm.Price(res.Shares, d(0))
	if pHome.LessThanOrEqual(d(50)) || pAway.GreaterThanOrEqual(d(50)) {
		t.Errorf("expected pHome > 50 > pAway after the buy, got %s / %s", pHome, pAway)
	}
}

func TestSharesForBudget_ExactCostMatchesCostFunction(t *testing.T) {
	mm := maker(t, 100)

	res, err := SharesForBudget(mm, d(30), d(80), d(25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recomputed := mm.Cost(d(30), d(30).Add(res.Shares), d(80))
	if !recomputed.Equal(res.Cost) {
		t.Errorf("returned cost %s disagrees with cost function %s", res.Cost, recomputed)
	}
}

func TestSharesForBudget_CostWithinTolerance(t *testing.T) {
	mm := maker(t, 100)

	for _, budget := range []float64{0.5, 1, 10, 50, 250, 1000} {
		res, err := SharesForBudget(mm, d(0), d(0), d(budget))
		if err != nil {
			t.Fatalf("budget %.2f: unexpected error: %v", budget, err)
		}
		if res.Cost.GreaterThan(d(budget + 0.01)) {
			t.Errorf("budget %.2f: cost %s exceeds budget beyond tolerance", budget, res.Cost)
		}
	}
}

func TestSharesForBudget_MonotoneInBudget(t *testing.T) {
	mm := maker(t, 100)

	prev := decimal.Zero
	for _, budget := range []float64{1, 5, 20, 100, 400} {
		res, err := SharesForBudget(mm, d(0), d(0), d(budget))
		if err != nil {
			t.Fatalf("budget %.0f: unexpected error: %v", budget, err)
		}
		if res.Shares.LessThanOrEqual(prev) {
			t.Fatalf("larger budget should buy more shares: %s after %s", res.Shares, prev)
		}
		prev = res.Shares
	}
}

func TestSharesForBudget_SeededMarketUnderdogSide(t *testing.T) {
	mm := maker(t, 100)

	// Favored side seeded to ~76%; buying the underdog still resolves.
	seed := d(115.13)
	res, err := SharesForBudget(mm, d(0), seed, d(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Underdog shares are cheap: 50 tokens buys more than 50 shares.
	if res.Shares.LessThan(d(50)) {
		t.Errorf("expected cheap underdog shares, got %s for 50 tokens", res.Shares)
	}
}

func TestSharesForBudget_InvalidBudget(t *testing.T) {
	mm := maker(t, 100)

	if _, err := SharesForBudget(mm, d(0), d(0), d(0)); err != ErrInvalidBudget {
		t.Errorf("expected ErrInvalidBudget for zero budget, got %v", err)
	}
	if _, err := SharesForBudget(mm, d(0), d(0), d(-5)); err != ErrInvalidBudget {
		t.Errorf("expected ErrInvalidBudget for negative budget, got %v", err)
	}
}

func TestSharesForBudget_TradeTooSmall(t *testing.T) {
	mm := maker(t, 100)

	// A budget below the representable share resolution cannot buy anything.
	if _, err := SharesForBudget(mm, d(0), d(0), decimal.New(1, -10)); err != ErrTradeTooSmall {
		t.Errorf("expected ErrTradeTooSmall, got %v", err)
	}
}

func TestSharesForBudget_TerminatesOnExtremeInputs(t *testing.T) {
	mm := maker(t, 100)

	// The iteration cap bounds work even for extreme budgets and skewed books.
	if _, err := SharesForBudget(mm, d(1e9), d(-1e9), d(1e12)); err != nil && err != ErrTradeTooSmall {
		t.Errorf("unexpected error on extreme input: %v", err)
	}
}
