// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// check with errors.Is; implementations wrap it with identifying detail.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Market operations ---

	// UpsertMarket inserts a market or replaces its full row. The schedule
	// refresher re-applies every known fixture each cycle, so writes must
	// be idempotent.
	UpsertMarket(ctx context.Context, market *model.Market) error

	// GetMarket retrieves a market by its ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// GetMarketByGame retrieves a market by its source game ID.
	GetMarketByGame(ctx context.Context, gameID string) (*model.Market, error)

	// ListMarkets returns all markets, optionally filtered by status
	// ("" means all).
	ListMarkets(ctx context.Context, status string) ([]model.Market, error)

	// --- Positions ---

	// GetPosition retrieves one user's position in one market. Returns
	// ErrNotFound when the user has never traded the market.
	GetPosition(ctx context.Context, userID, marketID string) (*model.Position, error)

	// UpsertPosition inserts or replaces a position row.
	UpsertPosition(ctx context.Context, p *model.Position) error

	// ListUserPositions returns all of a user's positions.
	ListUserPositions(ctx context.Context, userID string) ([]model.Position, error)

	// ListMarketPositions returns every position in a market. Used at
	// settlement to pay all holders.
	ListMarketPositions(ctx context.Context, marketID string) ([]model.Position, error)

	// --- Users ---

	// CreateUser persists a new user with a starting balance.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// SetBalance writes a user's balance, clamped to a non-negative floor.
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error

	// --- Price history ---

	// InsertPriceSnapshot appends one immutable price-history point.
	InsertPriceSnapshot(ctx context.Context, snap *model.PriceSnapshot) error

	// GetPriceHistory returns a market's snapshots in chronological order,
	// newest `limit` points (0 means all).
	GetPriceHistory(ctx context.Context, marketID string, limit int) ([]model.PriceSnapshot, error)
}
