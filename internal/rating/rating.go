// Package rating computes chronological Elo-style skill ratings per team
// per sport from an ordered game log. The computation is a pure function of
// its input: identical game lists always yield identical ratings, history,
// and records.
package rating

import (
	"math"
	"sort"
	"strings"
	"time"
)

// BaseRating is the starting rating for every team never seen before.
const BaseRating = 1000.0

// SportParams tunes the rating update for one family of sports.
//
//	KBase     : base K-factor; higher = faster rating movement.
//	MOVWeight : how much percent margin-of-victory scales K.
//	            0 = pure win/loss, higher = blowouts matter more.
//
// Percent margin = (winner − loser) / (winner + loser), always in [0, 1]
// regardless of a sport's score range, so MOVWeight is the sole lever
// controlling how much blowouts matter for that sport.
type SportParams struct {
	Match     string // lower-case substring matched against the sport name
	KBase     float64
	MOVWeight float64
}

// sportTable is consulted in order; the first entry whose Match substring
// appears in the lower-cased sport name wins. Unknown sports fall back to
// defaultParams.
//
// Reference points for mult = 1 + weight*pct:
//
//	Cornhole   2-0   → pct 1.00, weight 0.25 → 1.25×
//	Basketball 60-40 → pct 0.20, weight 2.5  → 1.50×
//	Basketball 80-20 → pct 0.60, weight 2.5  → capped at 2.50×
var sportTable = []SportParams{
	{Match: "cornhole", KBase: 80, MOVWeight: 0.25},   // first to 2; margin near-irrelevant
	{Match: "dodgeball", KBase: 80, MOVWeight: 0.40},  // first to ~3; small max margin
	{Match: "basketball", KBase: 100, MOVWeight: 2.5}, // high-scoring; spread is meaningful
	{Match: "flag football", KBase: 100, MOVWeight: 2.5},
	{Match: "omegaball", KBase: 100, MOVWeight: 1.0},
}

var defaultParams = SportParams{Match: "", KBase: 100, MOVWeight: 1.0}

// ParamsFor returns the tuning for a sport, falling back to the default.
func ParamsFor(sport string) SportParams {
	s := strings.ToLower(sport)
	for _, p := range sportTable {
		if strings.Contains(s, p.Match) {
			return p
		}
	}
	return defaultParams
}

// GameResult is one scored game in the log. Date is used strictly for
// ordering.
type GameResult struct {
	Date     time.Time
	Sport    string
	HomeTeam string
	AwayTeam string
	HomePts  int
	AwayPts  int
}

// Update is a per-game snapshot of the rating step: pre/post ratings and
// expectations for both teams.
type Update struct {
	Date         time.Time `json:"date"`
	Sport        string    `json:"sport"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	HomePts      int       `json:"home_pts"`
	AwayPts      int       `json:"away_pts"`
	HomePre      float64   `json:"home_rating_pre"`
	AwayPre      float64   `json:"away_rating_pre"`
	HomePost     float64   `json:"home_rating_post"`
	AwayPost     float64   `json:"away_rating_post"`
	HomeExpected float64   `json:"home_expected"`
	AwayExpected float64   `json:"away_expected"`
}

// Record is a team's win/loss/tie tally within one sport.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Ties   int `json:"ties"`
	Games  int `json:"games"`
}

// WinPct counts ties as half a win.
func (r Record) WinPct() float64 {
	if r.Games == 0 {
		return 0
	}
	return (float64(r.Wins) + 0.5*float64(r.Ties)) / float64(r.Games)
}

// Table maps sport → team → current rating.
type Table map[string]map[string]float64

// Rating looks up a team's rating, defaulting to BaseRating for teams with
// no played games.
func (t Table) Rating(sport, team string) float64 {
	if teams, ok := t[sport]; ok {
		if r, ok := teams[team]; ok {
			return r
		}
	}
	return BaseRating
}

// Output is the full result of a rating computation.
type Output struct {
	Ratings Table
	History []Update
	Records map[string]map[string]Record
}

// ExpectedWinProb is the probability that a team rated ratingA beats a team
// rated ratingB, on the standard logistic 400-point scale.
func ExpectedWinProb(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}

// MOVMultiplier is the margin-of-victory step-size adjustment:
//
//	pct  = (winner − loser) / (winner + loser)   ∈ [0, 1]
//	mult = 1 + weight*pct, clamped to [0.5, 2.5]
//
// Scale-invariant: a 2-0 cornhole win and a 60-0 basketball shutout both
// yield pct = 1.0.
func MOVMultiplier(winnerPts, loserPts int, weight float64) float64 {
	total := winnerPts + loserPts
	if total == 0 {
		return 1.0
	}
	pct := float64(winnerPts-loserPts) / float64(total)
	mult := 1.0 + weight*pct
	return math.Max(0.5, math.Min(2.5, mult))
}

// Compute walks every game in date order and applies the rating update
//
//	new = old + K*(actual − expected),  K = KBase * MOVMultiplier
//
// The input slice is not mutated; games are copied and re-sorted by date
// because the update is path-dependent and strict chronological order is
// what makes the ratings meaningful.
func Compute(games []GameResult) Output {
	ordered := make([]GameResult, len(games))
	copy(ordered, games)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	out := Output{
		Ratings: make(Table),
		History: make([]Update, 0, len(ordered)),
		Records: make(map[string]map[string]Record),
	}

	for _, g := range ordered {
		params := ParamsFor(g.Sport)

		rHome := out.Ratings.Rating(g.Sport, g.HomeTeam)
		rAway := out.Ratings.Rating(g.Sport, g.AwayTeam)

		expHome := ExpectedWinProb(rHome, rAway)
		expAway := 1.0 - expHome

		var sHome, sAway, mult float64
		switch {
		case g.HomePts > g.AwayPts:
			sHome, sAway = 1, 0
			mult = MOVMultiplier(g.HomePts, g.AwayPts, params.MOVWeight)
		case g.AwayPts > g.HomePts:
			sHome, sAway = 0, 1
			mult = MOVMultiplier(g.AwayPts, g.HomePts, params.MOVWeight)
		default:
			sHome, sAway = 0.5, 0.5
			mult = 1.0
		}

		k := params.KBase * mult
		newHome := rHome + k*(sHome-expHome)
		newAway := rAway + k*(sAway-expAway)

		out.History = append(out.History, Update{
			Date:         g.Date,
			Sport:        g.Sport,
			HomeTeam:     g.HomeTeam,
			AwayTeam:     g.AwayTeam,
			HomePts:      g.HomePts,
			AwayPts:      g.AwayPts,
			HomePre:      rHome,
			AwayPre:      rAway,
			HomePost:     newHome,
			AwayPost:     newAway,
			HomeExpected: expHome,
			AwayExpected: expAway,
		})

		setRating(out.Ratings, g.Sport, g.HomeTeam, newHome)
		setRating(out.Ratings, g.Sport, g.AwayTeam, newAway)
		recordGame(out.Records, g)
	}

	return out
}

func setRating(t Table, sport, team string, r float64) {
	teams, ok := t[sport]
	if !ok {
		teams = make(map[string]float64)
		t[sport] = teams
	}
	teams[team] = r
}

func recordGame(records map[string]map[string]Record, g GameResult) {
	teams, ok := records[g.Sport]
	if !ok {
		teams = make(map[string]Record)
		records[g.Sport] = teams
	}

	home := teams[g.HomeTeam]
	away := teams[g.AwayTeam]
	home.Games++
	away.Games++

	switch {
	case g.HomePts > g.AwayPts:
		home.Wins++
		away.Losses++
	case g.AwayPts > g.HomePts:
		away.Wins++
		home.Losses++
	default:
		home.Ties++
		away.Ties++
	}

	teams[g.HomeTeam] = home
	teams[g.AwayTeam] = away
}
