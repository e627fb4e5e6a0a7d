package rating

import (
	"math"
	"testing"
	"time"

	"github.com/polyjacket/market-engine/internal/model"
)

func day(n int) time.Time {
	return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestExpectedWinProb_Symmetric(t *testing.T) {
	pA := ExpectedWinProb(1000, 1000)
	if math.Abs(pA-0.5) > 1e-12 {
		t.Errorf("equal ratings should give 0.5, got %f", pA)
	}

	pStrong := ExpectedWinProb(1200, 1000)
	pWeak := ExpectedWinProb(1000, 1200)
	if math.Abs(pStrong+pWeak-1.0) > 1e-12 {
		t.Errorf("probabilities should sum to 1: %f + %f", pStrong, pWeak)
	}
}

func TestExpectedWinProb_TwoHundredPointGap(t *testing.T) {
	// 1200 vs 1000 on the 400-point logistic scale → ≈ 75.97%.
	p := ExpectedWinProb(1200, 1000)
	if math.Abs(p-0.7597) > 0.001 {
		t.Errorf("expected ≈0.76 for a 200-point edge, got %f", p)
	}
}

func TestMOVMultiplier_CornholeShutout(t *testing.T) {
	// Cornhole 2-0: pct = 1.0, weight 0.25 → 1.25×.
	params := ParamsFor("Cornhole")
	mult := MOVMultiplier(2, 0, params.MOVWeight)
	if math.Abs(mult-1.25) > 1e-9 {
		t.Errorf("cornhole 2-0 should give 1.25x, got %f", mult)
	}
}

func TestMOVMultiplier_BasketballBlowoutClamped(t *testing.T) {
	// Basketball 80-20: pct = 0.6, weight 2.5 → 2.5 (clamped from 2.5+).
	params := ParamsFor("5v5 Basketball")
	mult := MOVMultiplier(80, 20, params.MOVWeight)
	if math.Abs(mult-2.5) > 1e-9 {
		t.Errorf("basketball 80-20 should clamp at 2.5x, got %f", mult)
	}
}

func TestMOVMultiplier_ZeroTotal(t *testing.T) {
	if mult := MOVMultiplier(0, 0, 1.5); mult != 1.0 {
		t.Errorf("0-0 should give neutral multiplier, got %f", mult)
	}
}

func TestParamsFor_SubstringFirstMatchWins(t *testing.T) {
	tests := []struct {
		sport string
		want  float64 // MOVWeight as a distinguishing field
	}{
		{"Cornhole", 0.25},
		{"CoRec Cornhole League", 0.25},
		{"4v4 Flag Football", 2.5},
		{"5v5 Basketball", 2.5},
		{"Underwater Hockey", 1.0}, // fallback
	}
	for _, tt := range tests {
		if got := ParamsFor(tt.sport).MOVWeight; got != tt.want {
			t.Errorf("ParamsFor(%q).MOVWeight = %v, want %v", tt.sport, got, tt.want)
		}
	}
}

func TestCompute_SingleGame(t *testing.T) {
	games := []GameResult{
		{Date: day(0), Sport: "Cornhole", HomeTeam: "A", AwayTeam: "B", HomePts: 2, AwayPts: 0},
	}
	out := Compute(games)

	// Equal pre-ratings, home shutout: K = 80*1.25 = 100, Δ = 100*(1-0.5) = 50.
	if r := out.Ratings.Rating("Cornhole", "A"); math.Abs(r-1050) > 1e-9 {
		t.Errorf("winner rating: want 1050, got %f", r)
	}
	if r := out.Ratings.Rating("Cornhole", "B"); math.Abs(r-950) > 1e-9 {
		t.Errorf("loser rating: want 950, got %f", r)
	}

	rec := out.Records["Cornhole"]["A"]
	if rec.Wins != 1 || rec.Games != 1 {
		t.Errorf("winner record: want 1-0-0, got %+v", rec)
	}
	if len(out.History) != 1 {
		t.Fatalf("expected one history entry, got %d", len(out.History))
	}
	if out.History[0].HomePre != 1000 || math.Abs(out.History[0].HomePost-1050) > 1e-9 {
		t.Errorf("history pre/post mismatch: %+v", out.History[0])
	}
}

func TestCompute_TieSplitsAndSkipsMOV(t *testing.T) {
	games := []GameResult{
		{Date: day(0), Sport: "Omegaball", HomeTeam: "A", AwayTeam: "B", HomePts: 3, AwayPts: 3},
	}
	out := Compute(games)

	// Equal ratings and a tie: actual == expected, no movement.
	if r := out.Ratings.Rating("Omegaball", "A"); math.Abs(r-1000) > 1e-9 {
		t.Errorf("tie between equals should not move ratings, got %f", r)
	}
	rec := out.Records["Omegaball"]["A"]
	if rec.Ties != 1 || rec.Wins != 0 {
		t.Errorf("expected a tie on record, got %+v", rec)
	}
}

func TestCompute_Replayable(t *testing.T) {
	games := []GameResult{
		{Date: day(2), Sport: "5v5 Basketball", HomeTeam: "A", AwayTeam: "C", HomePts: 61, AwayPts: 49},
		{Date: day(0), Sport: "5v5 Basketball", HomeTeam: "A", AwayTeam: "B", HomePts: 55, AwayPts: 40},
		{Date: day(1), Sport: "5v5 Basketball", HomeTeam: "B", AwayTeam: "C", HomePts: 30, AwayPts: 45},
	}

	first := Compute(games)
	second := Compute(games)

	for sport, teams := range first.Ratings {
		for team, r := range teams {
			if got := second.Ratings.Rating(sport, team); math.Abs(got-r) > 1e-12 {
				t.Errorf("recompute diverged for %s/%s: %f vs %f", sport, team, r, got)
			}
		}
	}
	if len(first.History) != len(second.History) {
		t.Fatalf("history length diverged: %d vs %d", len(first.History), len(second.History))
	}
}

func TestCompute_OrderIsChronologicalNotInputOrder(t *testing.T) {
	shuffled := []GameResult{
		{Date: day(5), Sport: "Dodgeball", HomeTeam: "A", AwayTeam: "B", HomePts: 3, AwayPts: 1},
		{Date: day(1), Sport: "Dodgeball", HomeTeam: "A", AwayTeam: "B", HomePts: 0, AwayPts: 3},
	}
	out := Compute(shuffled)

	// The day-1 game must be processed first.
	if out.History[0].Date != day(1) {
		t.Errorf("games should be processed in date order, first was %v", out.History[0].Date)
	}
	// Path dependence: processing order changes the final numbers, so the
	// sorted pass must start from the earlier game's 1000/1000 baseline.
	if out.History[0].HomePre != 1000 || out.History[0].AwayPre != 1000 {
		t.Errorf("first chronological game should start from base ratings: %+v", out.History[0])
	}
}

func TestCompute_UnseenTeamDefaultsToBase(t *testing.T) {
	out := Compute(nil)
	if r := out.Ratings.Rating("Cornhole", "Nobody"); r != BaseRating {
		t.Errorf("unseen team should rate %v, got %f", BaseRating, r)
	}
}

func TestGamesFromFixtures_SkipsUnparsable(t *testing.T) {
	fixtures := []model.Fixture{
		{GameID: "g1", Sport: "Cornhole", HomeTeam: "A", AwayTeam: "B",
			HomeScore: "2", AwayScore: "0", Date: "2/10/2026"},
		{GameID: "g2", Sport: "Cornhole", HomeTeam: "C", AwayTeam: "D",
			HomeScore: "--", AwayScore: "--", Date: "2/11/2026"}, // unplayed
		{GameID: "g3", Sport: "Cornhole", HomeTeam: "E", AwayTeam: "F",
			HomeScore: "2", AwayScore: "1", Date: ""}, // undated
		{GameID: "g4", Sport: "Cornhole", HomeTeam: "G", AwayTeam: "H",
			HomeScore: "2", AwayScore: "1", Date: "02/12/2026"}, // zero-padded date
	}

	games := GamesFromFixtures(fixtures)
	if len(games) != 2 {
		t.Fatalf("expected 2 usable games, got %d", len(games))
	}
	if games[0].HomePts != 2 || games[0].AwayPts != 0 {
		t.Errorf("unexpected scores: %+v", games[0])
	}
	if games[1].Date.Day() != 12 {
		t.Errorf("zero-padded date should parse, got %v", games[1].Date)
	}
}
