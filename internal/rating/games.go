package rating

import (
	"strconv"
	"strings"
	"time"

	"github.com/polyjacket/market-engine/internal/model"
)

// feed dates arrive as M/D/YYYY, sometimes zero-padded
var dateLayouts = []string{"1/2/2006", "01/02/2006"}

// GamesFromFixtures converts feed fixtures into scored game results.
// Entries with unparsable scores or missing dates are skipped: unplayed,
// cancelled, and time-only rows carry no rating signal.
func GamesFromFixtures(fixtures []model.Fixture) []GameResult {
	games := make([]GameResult, 0, len(fixtures))
	for _, f := range fixtures {
		homePts, err := strconv.Atoi(strings.TrimSpace(f.HomeScore))
		if err != nil {
			continue
		}
		awayPts, err := strconv.Atoi(strings.TrimSpace(f.AwayScore))
		if err != nil {
			continue
		}

		date, ok := parseDate(f.Date)
		if !ok {
			continue
		}

		games = append(games, GameResult{
			Date:     date,
			Sport:    f.Sport,
			HomeTeam: f.HomeTeam,
			AwayTeam: f.AwayTeam,
			HomePts:  homePts,
			AwayPts:  awayPts,
		})
	}
	return games
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
