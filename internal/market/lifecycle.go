// Package market holds the market lifecycle state machine and the
// rating-driven seeder. Both are pure: they compute transitions and opening
// state, and leave persistence to the caller.
package market

import (
	"strconv"
	"strings"
	"time"

	"github.com/polyjacket/market-engine/internal/model"
)

// statusRank orders the one-directional lifecycle:
// open (0) → closed (1) → settled (2). A market never moves to a
// lower-ranked status; settled never reopens.
var statusRank = map[string]int{
	model.StatusOpen:    0,
	model.StatusClosed:  1,
	model.StatusSettled: 2,
}

// fixture feed statuses that carry an authoritative final result
const (
	fixtureCompleted = "completed"
	fixtureForfeit   = "forfeit"
)

// Start times come as "7:15 PM" etc. next to a M/D/YYYY date; "TBD" rows
// have no parsable start and keep the market open.
var startLayouts = []string{
	"1/2/2006 3:04 PM",
	"01/02/2006 3:04 PM",
	"1/2/2006 15:04",
	"01/02/2006 15:04",
}

// Final reports whether a fixture carries an authoritative final result.
func Final(f model.Fixture) bool {
	return f.Status == fixtureCompleted || f.Status == fixtureForfeit
}

// DeriveStatus maps a fixture to the market status it implies at `now`.
// A final result settles regardless of the clock; otherwise the market
// closes once the scheduled start has passed and stays open until then.
func DeriveStatus(f model.Fixture, now time.Time) string {
	if Final(f) {
		return model.StatusSettled
	}
	if startPassed(f.Time, f.Date, now) {
		return model.StatusClosed
	}
	return model.StatusOpen
}

func startPassed(gameTime, gameDate string, now time.Time) bool {
	combined := strings.TrimSpace(gameDate) + " " + strings.TrimSpace(gameTime)
	for _, layout := range startLayouts {
		if start, err := time.ParseInLocation(layout, combined, now.Location()); err == nil {
			return !now.Before(start)
		}
	}
	return false
}

// Winner derives the winning side from a final score pair. The winner is
// the side with the strictly higher integer score; ties and unparsable
// scores yield "" (winner unset; both sides pay nothing).
func Winner(homeScore, awayScore string) string {
	home, err := strconv.Atoi(strings.TrimSpace(homeScore))
	if err != nil {
		return ""
	}
	away, err := strconv.Atoi(strings.TrimSpace(awayScore))
	if err != nil {
		return ""
	}
	switch {
	case home > away:
		return model.SideHome
	case away > home:
		return model.SideAway
	default:
		return ""
	}
}

// ApplyFixture refreshes an existing market from fixture data in place:
// scores, status (honoring one-directional transitions), and winner. It
// returns true exactly when this call performed the transition into
// settled, the edge on which payouts are credited. Re-applying the same
// fixture is a no-op and returns false.
func ApplyFixture(m *model.Market, f model.Fixture, now time.Time) (settledNow bool) {
	// A settled outcome is fixed. The feed occasionally re-lists a finished
	// game as scheduled with blanked scores; nothing from such a row may
	// touch the stored result.
	if m.Status == model.StatusSettled {
		return false
	}

	m.HomeScore = f.HomeScore
	m.AwayScore = f.AwayScore
	m.GameTime = f.Time
	m.GameDate = f.Date

	derived := DeriveStatus(f, now)
	if statusRank[derived] <= statusRank[m.Status] {
		// Already at or past the derived status; scores may still have
		// been corrected above, but the state machine does not move back.
		return false
	}

	m.Status = derived
	if derived == model.StatusSettled {
		m.Winner = Winner(m.HomeScore, m.AwayScore)
		ts := now.UTC()
		m.SettledAt = &ts
		return true
	}
	return false
}
