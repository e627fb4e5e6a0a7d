package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	markets   map[string]*model.Market
	positions map[string]*model.Position // keyed userID|marketID
	users     map[string]*model.User
	history   map[string][]model.PriceSnapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:   make(map[string]*model.Market),
		positions: make(map[string]*model.Position),
		users:     make(map[string]*model.User),
		history:   make(map[string][]model.PriceSnapshot),
	}
}

func positionKey(userID, marketID string) string {
	return userID + "|" + marketID
}

func (s *MemoryStore) UpsertMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *m
	s.markets[m.ID] = &copy
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", id, ErrNotFound)
	}
	copy := *m
	return &copy, nil
}

func (s *MemoryStore) GetMarketByGame(_ context.Context, gameID string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.markets {
		if m.GameID == gameID {
			copy := *m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("market for game %s: %w", gameID, ErrNotFound)
}

func (s *MemoryStore) ListMarkets(_ context.Context, status string) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if status != "" && m.Status != status {
			continue
		}
		markets = append(markets, *m)
	}
	return markets, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID, marketID string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey(userID, marketID)]
	if !ok {
		return nil, fmt.Errorf("position %s/%s: %w", userID, marketID, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.positions[positionKey(p.UserID, p.MarketID)] = &copy
	return nil
}

func (s *MemoryStore) ListUserPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListMarketPositions(_ context.Context, marketID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.MarketID == marketID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) SetBalance(_ context.Context, userID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	u.Balance = balance
	return nil
}

func (s *MemoryStore) InsertPriceSnapshot(_ context.Context, snap *model.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[snap.MarketID] = append(s.history[snap.MarketID], *snap)
	return nil
}

func (s *MemoryStore) GetPriceHistory(_ context.Context, marketID string, limit int) ([]model.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.history[marketID]
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[len(snaps)-limit:]
	}
	result := make([]model.PriceSnapshot, len(snaps))
	copy(result, snaps)
	return result, nil
}
