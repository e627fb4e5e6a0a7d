// Package trade provides the business logic and HTTP handlers for
// executing trades, maintaining markets from the schedule feed, and
// querying balances and portfolios.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/ledger"
	"github.com/polyjacket/market-engine/internal/lmsr"
	"github.com/polyjacket/market-engine/internal/market"
	"github.com/polyjacket/market-engine/internal/metrics"
	"github.com/polyjacket/market-engine/internal/model"
	"github.com/polyjacket/market-engine/internal/rating"
	"github.com/polyjacket/market-engine/internal/solver"
	"github.com/polyjacket/market-engine/internal/store"
)

// Service errors mapped to HTTP statuses by the handlers.
var (
	ErrMarketNotOpen       = errors.New("trade: market is not open for trading")
	ErrInvalidSide         = errors.New("trade: side must be home or away")
	ErrInsufficientBalance = errors.New("trade: insufficient balance")
)

// Service handles market operations. Trades on the same market are
// serialized by a per-market mutex spanning solve and apply; trades on
// different markets run concurrently. Single-instance only; horizontal
// scaling needs distributed locking.
type Service struct {
	store    store.Store
	b        decimal.Decimal // liquidity parameter for newly seeded markets
	starting decimal.Decimal // balance granted to new users

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	ratingsMu sync.RWMutex
	ratings   rating.Output

	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, b, startingBalance decimal.Decimal, hub *WSHub) *Service {
	return &Service{
		store:    st,
		b:        b,
		starting: startingBalance,
		locks:    make(map[string]*sync.Mutex),
		ratings:  rating.Output{Ratings: rating.Table{}},
		wsHub:    hub,
	}
}

// marketLock returns the mutex for one market, creating it on first use.
func (s *Service) marketLock(marketID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[marketID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[marketID] = mu
	}
	return mu
}

// TradeResult is the outcome of a filled trade.
type TradeResult struct {
	MarketID  string          `json:"market_id"`
	UserID    string          `json:"user_id"`
	Side      string          `json:"side"`
	Shares    decimal.Decimal `json:"shares"`
	Cost      decimal.Decimal `json:"cost"`
	HomePrice decimal.Decimal `json:"home_price"`
	AwayPrice decimal.Decimal `json:"away_price"`
	Balance   decimal.Decimal `json:"balance"`
	Position  model.Position  `json:"position"`
}

// ExecuteTrade spends up to `budget` tokens buying `side` shares in a
// market. The share count is solved from the budget against the cost
// function, so the user pays what the fill actually costs (within
// tolerance), never more than the budget.
func (s *Service) ExecuteTrade(ctx context.Context, userID, marketID, side string, budget decimal.Decimal) (*TradeResult, error) {
	if side != model.SideHome && side != model.SideAway {
		return nil, ErrInvalidSide
	}
	if budget.LessThanOrEqual(decimal.Zero) {
		return nil, solver.ErrInvalidBudget
	}

	// Serialize against other trades and fixture updates on this market.
	mu := s.marketLock(marketID)
	mu.Lock()
	defer mu.Unlock()

	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.StatusOpen {
		return nil, ErrMarketNotOpen
	}

	mm, err := lmsr.NewMarketMaker(m.B)
	if err != nil {
		return nil, err
	}

	current, other := m.HomeShares, m.AwayShares
	if side == model.SideAway {
		current, other = m.AwayShares, m.HomeShares
	}

	fill, err := solver.SharesForBudget(mm, current, other, budget)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Balance.LessThan(fill.Cost) {
		return nil, ErrInsufficientBalance
	}

	now := time.Now().UTC()

	// Debit before mutating the book. A storage failure while persisting
	// the fill rolls the debit, and any book write that already landed,
	// back: tokens are never taken without shares delivered.
	newBalance := user.Balance.Sub(fill.Cost)
	if err := s.store.SetBalance(ctx, userID, newBalance); err != nil {
		return nil, err
	}

	prev := *m
	if side == model.SideHome {
		m.HomeShares = m.HomeShares.Add(fill.Shares)
	} else {
		m.AwayShares = m.AwayShares.Add(fill.Shares)
	}
	m.HomePrice, m.AwayPrice = mm.Price(m.HomeShares, m.AwayShares)
	m.TotalVolume = m.TotalVolume.Add(fill.Cost)

	if err := s.store.UpsertMarket(ctx, m); err != nil {
		s.rollbackFill(ctx, userID, user.Balance, nil)
		return nil, err
	}

	pos, err := s.store.GetPosition(ctx, userID, marketID)
	if errors.Is(err, store.ErrNotFound) {
		pos = ledger.NewPosition(userID, marketID, now)
	} else if err != nil {
		s.rollbackFill(ctx, userID, user.Balance, &prev)
		return nil, err
	}
	ledger.ApplyTrade(pos, side, fill.Shares, fill.Cost, now)
	if err := s.store.UpsertPosition(ctx, pos); err != nil {
		s.rollbackFill(ctx, userID, user.Balance, &prev)
		return nil, err
	}

	s.snapshot(ctx, m, now)

	metrics.TradesTotal.WithLabelValues(side).Inc()
	metrics.TradeLatency.WithLabelValues(side).Observe(time.Since(now).Seconds())

	slog.Info("trade executed",
		"market", marketID,
		"user", userID,
		"side", side,
		"shares", fill.Shares.String(),
		"cost", fill.Cost.String(),
		"home_price", m.HomePrice.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "trade_executed",
			MarketID:  m.ID,
			GameID:    m.GameID,
			HomePrice: m.HomePrice.String(),
			AwayPrice: m.AwayPrice.String(),
			Side:      side,
			Shares:    fill.Shares.String(),
		})
	}

	return &TradeResult{
		MarketID:  m.ID,
		UserID:    userID,
		Side:      side,
		Shares:    fill.Shares,
		Cost:      fill.Cost,
		HomePrice: m.HomePrice,
		AwayPrice: m.AwayPrice,
		Balance:   newBalance,
		Position:  *pos,
	}, nil
}

// rollbackFill reverses a partially persisted trade: restore the user's
// pre-trade balance and, when the book write already landed, the pre-trade
// market row. Held under the market lock, so no trade interleaves.
func (s *Service) rollbackFill(ctx context.Context, userID string, balance decimal.Decimal, m *model.Market) {
	if err := s.store.SetBalance(ctx, userID, balance); err != nil {
		slog.Error("trade rollback: balance restore failed", "user", userID, "err", err)
	}
	if m == nil {
		return
	}
	if err := s.store.UpsertMarket(ctx, m); err != nil {
		slog.Error("trade rollback: market restore failed", "market", m.ID, "err", err)
	}
}

// SeedOrUpdateMarket reconciles one fixture from the schedule feed.
// Unknown games get a new market seeded at rating-implied odds; known
// games get their scores and lifecycle status refreshed. When a fixture
// carries a final result the market settles and every holder of the
// winning side is paid, exactly once.
func (s *Service) SeedOrUpdateMarket(ctx context.Context, f model.Fixture) (*model.Market, error) {
	now := time.Now().UTC()

	existing, err := s.store.GetMarketByGame(ctx, f.GameID)
	if errors.Is(err, store.ErrNotFound) {
		return s.seedMarket(ctx, f, now)
	}
	if err != nil {
		return nil, err
	}

	mu := s.marketLock(existing.ID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock; a trade may have moved the book.
	m, err := s.store.GetMarket(ctx, existing.ID)
	if err != nil {
		return nil, err
	}

	settledNow := market.ApplyFixture(m, f, now)
	if err := s.store.UpsertMarket(ctx, m); err != nil {
		return nil, err
	}

	if settledNow {
		if err := s.payout(ctx, m); err != nil {
			return nil, err
		}
		winner := m.Winner
		if winner == "" {
			winner = "void"
		}
		metrics.SettlementsTotal.WithLabelValues(winner).Inc()
		slog.Info("market settled",
			"market", m.ID,
			"game", m.GameID,
			"winner", m.Winner,
			"score", m.HomeScore+"-"+m.AwayScore,
		)
		if s.wsHub != nil {
			s.wsHub.Broadcast(WSMessage{
				Type:     "market_settled",
				MarketID: m.ID,
				GameID:   m.GameID,
				Winner:   m.Winner,
			})
		}
	}
	return m, nil
}

func (s *Service) seedMarket(ctx context.Context, f model.Fixture, now time.Time) (*model.Market, error) {
	mm, err := lmsr.NewMarketMaker(s.b)
	if err != nil {
		return nil, err
	}

	s.ratingsMu.RLock()
	table := s.ratings.Ratings
	s.ratingsMu.RUnlock()

	seed := market.ComputeSeed(mm, table, f.Sport, f.HomeTeam, f.AwayTeam)
	m := market.FromFixture(f, seed, now)

	if err := s.store.UpsertMarket(ctx, m); err != nil {
		return nil, err
	}
	s.snapshot(ctx, m, now)

	// A fixture can arrive already final (backfill). Seeding and settling
	// in one pass is fine: nobody holds a position yet.
	if m.Status == model.StatusSettled {
		return m, nil
	}

	slog.Info("market seeded",
		"market", m.ID,
		"game", m.GameID,
		"sport", m.Sport,
		"home_price", m.HomePrice.String(),
		"volume", m.TotalVolume.String(),
	)
	return m, nil
}

// payout credits every winning-side holder one token per share. Called
// exactly once per market, on the settle edge, under the market lock.
func (s *Service) payout(ctx context.Context, m *model.Market) error {
	positions, err := s.store.ListMarketPositions(ctx, m.ID)
	if err != nil {
		return err
	}

	for i := range positions {
		p := &positions[i]
		credit := ledger.Payout(p, m)
		if credit.LessThanOrEqual(decimal.Zero) {
			continue
		}
		user, err := s.store.GetUser(ctx, p.UserID)
		if err != nil {
			slog.Error("payout skipped, user lookup failed",
				"market", m.ID, "user", p.UserID, "err", err)
			continue
		}
		if err := s.store.SetBalance(ctx, p.UserID, user.Balance.Add(credit)); err != nil {
			return err
		}
		metrics.PayoutsTotal.Inc()
		slog.Info("payout credited",
			"market", m.ID,
			"user", p.UserID,
			"amount", credit.String(),
		)
	}
	return nil
}

// RecomputeRatings rebuilds the rating table from every settled market's
// final score. A full chronological replay keeps the table identical no
// matter how results arrived.
func (s *Service) RecomputeRatings(ctx context.Context) (rating.Output, error) {
	settled, err := s.store.ListMarkets(ctx, model.StatusSettled)
	if err != nil {
		return rating.Output{}, err
	}

	fixtures := make([]model.Fixture, 0, len(settled))
	for _, m := range settled {
		fixtures = append(fixtures, model.Fixture{
			GameID:    m.GameID,
			HomeTeam:  m.HomeTeam,
			AwayTeam:  m.AwayTeam,
			HomeScore: m.HomeScore,
			AwayScore: m.AwayScore,
			Date:      m.GameDate,
			Sport:     m.Sport,
		})
	}

	out := rating.Compute(rating.GamesFromFixtures(fixtures))

	s.ratingsMu.Lock()
	s.ratings = out
	s.ratingsMu.Unlock()

	slog.Info("ratings recomputed",
		"games", len(out.History),
		"sports", len(out.Ratings),
	)
	return out, nil
}

// Ratings returns the most recently computed rating output.
func (s *Service) Ratings() rating.Output {
	s.ratingsMu.RLock()
	defer s.ratingsMu.RUnlock()
	return s.ratings
}

// PortfolioEntry is one market position marked to market.
type PortfolioEntry struct {
	Position  model.Position  `json:"position"`
	Market    model.Market    `json:"market"`
	Value     decimal.Decimal `json:"value"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	PnL       decimal.Decimal `json:"pnl"`
}

// Portfolio is a user's balance plus all their positions marked to market.
type Portfolio struct {
	UserID     string           `json:"user_id"`
	Balance    decimal.Decimal  `json:"balance"`
	Positions  []PortfolioEntry `json:"positions"`
	TotalValue decimal.Decimal  `json:"total_value"` // balance + position values
}

// GetPortfolio returns a user's balance and positions. Open positions are
// valued at what the market maker would pay to buy them back; settled
// positions at their payout.
func (s *Service) GetPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions, err := s.store.ListUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	pf := &Portfolio{
		UserID:     userID,
		Balance:    user.Balance,
		Positions:  []PortfolioEntry{},
		TotalValue: user.Balance,
	}

	for _, p := range positions {
		if p.Empty() {
			continue
		}
		m, err := s.store.GetMarket(ctx, p.MarketID)
		if err != nil {
			return nil, err
		}
		mm, err := lmsr.NewMarketMaker(m.B)
		if err != nil {
			return nil, err
		}

		value := ledger.Value(&p, m, mm)
		basis := ledger.CostBasis(&p)

		pf.Positions = append(pf.Positions, PortfolioEntry{
			Position:  p,
			Market:    *m,
			Value:     value,
			CostBasis: basis,
			PnL:       value.Sub(basis),
		})
		pf.TotalValue = pf.TotalValue.Add(value)
	}
	return pf, nil
}

// snapshot appends a price-history point. History writes are best-effort;
// a failed snapshot never fails the trade that produced it.
func (s *Service) snapshot(ctx context.Context, m *model.Market, now time.Time) {
	snap := &model.PriceSnapshot{
		MarketID:    m.ID,
		HomePrice:   m.HomePrice,
		AwayPrice:   m.AwayPrice,
		HomeShares:  m.HomeShares,
		AwayShares:  m.AwayShares,
		TotalVolume: m.TotalVolume,
		Timestamp:   now,
	}
	if err := s.store.InsertPriceSnapshot(ctx, snap); err != nil {
		slog.Error("price snapshot failed", "market", m.ID, "err", err)
	}
}
