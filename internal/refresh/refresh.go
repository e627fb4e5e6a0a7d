// Package refresh runs the schedule polling loop: fetch fixtures from the
// feed, reconcile every market, and rebuild ratings from final scores.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/polyjacket/market-engine/internal/fixtures"
	"github.com/polyjacket/market-engine/internal/market"
	"github.com/polyjacket/market-engine/internal/metrics"
	"github.com/polyjacket/market-engine/internal/model"
	"github.com/polyjacket/market-engine/internal/store"
	"github.com/polyjacket/market-engine/internal/trade"
)

// Runner polls the schedule feed on a fixed interval.
type Runner struct {
	feed       *fixtures.Client
	svc        *trade.Service
	store      store.Store
	interval   time.Duration
	lookahead  int // days of upcoming games to seed
	lookbehind int // days of past games to settle late results
}

// NewRunner creates a refresh runner.
func NewRunner(feed *fixtures.Client, svc *trade.Service, st store.Store,
	interval time.Duration, lookahead, lookbehind int) *Runner {
	return &Runner{
		feed:       feed,
		svc:        svc,
		store:      st,
		interval:   interval,
		lookahead:  lookahead,
		lookbehind: lookbehind,
	}
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh is one full reconcile pass. Feed errors abort the pass; the
// next tick retries from scratch.
func (r *Runner) refresh(ctx context.Context) {
	start := time.Now()

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -r.lookbehind)
	to := now.AddDate(0, 0, r.lookahead)

	fetched, err := r.feed.GamesRange(ctx, from, to)
	if err != nil {
		slog.Error("schedule fetch failed", "err", err)
		return
	}

	// Finished games first: their results must be stored and folded into
	// the rating table before any upcoming game seeds from it. Otherwise a
	// cold start seeds every market 50/50 even when the same fetch carries
	// the completed history.
	var upcoming []model.Fixture
	var failed int
	for _, f := range fetched {
		if f.GameID == "" || f.HomeTeam == "" || f.AwayTeam == "" {
			continue
		}
		if !market.Final(f) {
			upcoming = append(upcoming, f)
			continue
		}
		if _, err := r.svc.SeedOrUpdateMarket(ctx, f); err != nil {
			failed++
			slog.Error("fixture reconcile failed", "game", f.GameID, "err", err)
		}
	}

	if _, err := r.svc.RecomputeRatings(ctx); err != nil {
		slog.Error("rating recompute failed", "err", err)
	}

	for _, f := range upcoming {
		if _, err := r.svc.SeedOrUpdateMarket(ctx, f); err != nil {
			failed++
			slog.Error("fixture reconcile failed", "game", f.GameID, "err", err)
		}
	}

	if open, err := r.store.ListMarkets(ctx, model.StatusOpen); err == nil {
		metrics.OpenMarkets.Set(float64(len(open)))
	}
	metrics.FeedRefreshDuration.Observe(time.Since(start).Seconds())

	slog.Info("schedule refreshed",
		"fixtures", len(fetched),
		"failed", failed,
		"took", time.Since(start).Round(time.Millisecond).String(),
	)
}
