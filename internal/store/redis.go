package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) UpsertMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpsertMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	s.rdb.Set(ctx, gameKey(m.GameID), m.ID, s.ttl)
	return nil
}

func (s *CachedStore) UpsertPosition(ctx context.Context, p *model.Position) error {
	if err := s.primary.UpsertPosition(ctx, p); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, positionsKey(p.UserID))
	return nil
}

func (s *CachedStore) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	if err := s.primary.SetBalance(ctx, userID, balance); err != nil {
		return err
	}
	s.rdb.Del(ctx, userKey(userID))
	return nil
}

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) InsertPriceSnapshot(ctx context.Context, snap *model.PriceSnapshot) error {
	return s.primary.InsertPriceSnapshot(ctx, snap)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetMarketByGame(ctx context.Context, gameID string) (*model.Market, error) {
	// Try cache via game→marketID mapping.
	marketID, err := s.rdb.Get(ctx, gameKey(gameID)).Result()
	if err == nil {
		return s.GetMarket(ctx, marketID)
	}

	m, err := s.primary.GetMarketByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	s.rdb.Set(ctx, gameKey(gameID), m.ID, s.ttl)
	return m, nil
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	data, err := s.rdb.Get(ctx, userKey(id)).Bytes()
	if err == nil {
		var u model.User
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	u, err := s.primary.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(u); err == nil {
		s.rdb.Set(ctx, userKey(id), data, s.ttl)
	}
	return u, nil
}

func (s *CachedStore) ListUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	data, err := s.rdb.Get(ctx, positionsKey(userID)).Bytes()
	if err == nil {
		var positions []model.Position
		if json.Unmarshal(data, &positions) == nil {
			return positions, nil
		}
	}

	positions, err := s.primary.ListUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, positionsKey(userID), data, s.ttl)
	}
	return positions, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context, status string) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx, status)
}

func (s *CachedStore) GetPosition(ctx context.Context, userID, marketID string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, userID, marketID)
}

func (s *CachedStore) ListMarketPositions(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.primary.ListMarketPositions(ctx, marketID)
}

func (s *CachedStore) GetPriceHistory(ctx context.Context, marketID string, limit int) ([]model.PriceSnapshot, error) {
	return s.primary.GetPriceHistory(ctx, marketID, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func marketKey(id string) string     { return fmt.Sprintf("market:%s", id) }
func gameKey(id string) string       { return fmt.Sprintf("game:%s", id) }
func userKey(id string) string       { return fmt.Sprintf("user:%s", id) }
func positionsKey(uid string) string { return fmt.Sprintf("positions:%s", uid) }
