package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/polyjacket/market-engine/internal/fixtures"
	"github.com/polyjacket/market-engine/internal/model"
	"github.com/polyjacket/market-engine/internal/store"
	"github.com/polyjacket/market-engine/internal/trade"
)

// feedServer serves fixtures keyed by the date query parameter, the shape
// the per-date schedule endpoint returns.
func feedServer(t *testing.T, byDate map[string][]model.Fixture) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows, ok := byDate[r.URL.Query().Get("date")]
		if !ok {
			rows = []model.Fixture{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}))
}

func newTestRunner(t *testing.T, feedURL string) (*Runner, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := trade.NewService(ms, decimal.NewFromInt(100), decimal.NewFromInt(10000), nil)
	feed := fixtures.NewClient(
		fixtures.WithBaseURL(feedURL),
		fixtures.WithRateLimit(1000, 100),
	)
	return NewRunner(feed, svc, ms, time.Minute, 1, 1), ms
}

func TestRefresh_ColdStartSeedsFromFetchedResults(t *testing.T) {
	now := time.Now().UTC()
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")

	// One fetch window holds both the finished game and the upcoming
	// rematch. The finished result must drive the rematch's opening odds
	// even when the rating table starts empty.
	byDate := map[string][]model.Fixture{
		yesterday: {{
			GameID: "past1", HomeTeam: "Lebum", AwayTeam: "Tuna Sub",
			Sport: "5v5 Basketball", Time: "8:00 PM",
			Status: "completed", HomeScore: "60", AwayScore: "40",
		}},
		tomorrow: {{
			GameID: "future1", HomeTeam: "Lebum", AwayTeam: "Tuna Sub",
			Sport: "5v5 Basketball", Time: "8:00 PM",
			Status: "scheduled", HomeScore: "--", AwayScore: "--",
		}},
	}
	ts := feedServer(t, byDate)
	defer ts.Close()

	r, ms := newTestRunner(t, ts.URL)
	ctx := context.Background()
	r.refresh(ctx)

	past, err := ms.GetMarketByGame(ctx, "past1")
	require.NoError(t, err)
	require.Equal(t, model.StatusSettled, past.Status)
	require.Equal(t, model.SideHome, past.Winner)

	m, err := ms.GetMarketByGame(ctx, "future1")
	require.NoError(t, err)
	require.Equal(t, model.StatusOpen, m.Status)
	require.True(t, m.HomePrice.GreaterThan(decimal.NewFromInt(50)),
		"first pass should seed the rematch from the fetched result, got %s", m.HomePrice)
	require.Greater(t, m.HomeRating, m.AwayRating)
}

func TestRefresh_SkipsRowsWithoutTeamsOrID(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")
	byDate := map[string][]model.Fixture{
		today: {
			{GameID: "", HomeTeam: "A", AwayTeam: "B", Sport: "Cornhole", Status: "scheduled"},
			{GameID: "g1", HomeTeam: "", AwayTeam: "B", Sport: "Cornhole", Status: "scheduled"},
		},
	}
	ts := feedServer(t, byDate)
	defer ts.Close()

	r, ms := newTestRunner(t, ts.URL)
	ctx := context.Background()
	r.refresh(ctx)

	markets, err := ms.ListMarkets(ctx, "")
	require.NoError(t, err)
	require.Empty(t, markets, "incomplete rows must not create markets")
}
