package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist. Safe to run on
// every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS markets (
			market_id    TEXT PRIMARY KEY,
			game_id      TEXT NOT NULL UNIQUE,
			home_team    TEXT NOT NULL,
			away_team    TEXT NOT NULL,
			sport        TEXT NOT NULL,
			game_time    TEXT NOT NULL DEFAULT '',
			game_date    TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			home_shares  NUMERIC NOT NULL DEFAULT 0,
			away_shares  NUMERIC NOT NULL DEFAULT 0,
			b            NUMERIC NOT NULL,
			home_price   NUMERIC NOT NULL DEFAULT 50,
			away_price   NUMERIC NOT NULL DEFAULT 50,
			total_volume NUMERIC NOT NULL DEFAULT 0,
			winner       TEXT NOT NULL DEFAULT '',
			home_score   TEXT NOT NULL DEFAULT '',
			away_score   TEXT NOT NULL DEFAULT '',
			home_rating  DOUBLE PRECISION NOT NULL DEFAULT 1000,
			away_rating  DOUBLE PRECISION NOT NULL DEFAULT 1000,
			created_at   TIMESTAMPTZ NOT NULL,
			settled_at   TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS positions (
			user_id        TEXT NOT NULL,
			market_id      TEXT NOT NULL,
			home_shares    NUMERIC NOT NULL DEFAULT 0,
			away_shares    NUMERIC NOT NULL DEFAULT 0,
			avg_home_price NUMERIC NOT NULL DEFAULT 0,
			avg_away_price NUMERIC NOT NULL DEFAULT 0,
			updated_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, market_id)
		);
		CREATE TABLE IF NOT EXISTS users (
			user_id    TEXT PRIMARY KEY,
			balance    NUMERIC NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS price_history (
			id           BIGSERIAL PRIMARY KEY,
			market_id    TEXT NOT NULL,
			home_price   NUMERIC NOT NULL,
			away_price   NUMERIC NOT NULL,
			home_shares  NUMERIC NOT NULL,
			away_shares  NUMERIC NOT NULL,
			total_volume NUMERIC NOT NULL,
			timestamp    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_price_history_market
			ON price_history (market_id, timestamp);
	`)
	return err
}

const marketColumns = `market_id, game_id, home_team, away_team, sport,
       game_time, game_date, status,
       home_shares::TEXT, away_shares::TEXT, b::TEXT,
       home_price::TEXT, away_price::TEXT, total_volume::TEXT,
       winner, home_score, away_score,
       home_rating, away_rating, created_at, settled_at`

func (s *PostgresStore) UpsertMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (market_id, game_id, home_team, away_team, sport,
		                      game_time, game_date, status,
		                      home_shares, away_shares, b,
		                      home_price, away_price, total_volume,
		                      winner, home_score, away_score,
		                      home_rating, away_rating, created_at, settled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		         $9::NUMERIC, $10::NUMERIC, $11::NUMERIC,
		         $12::NUMERIC, $13::NUMERIC, $14::NUMERIC,
		         $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (market_id) DO UPDATE SET
		         game_time = EXCLUDED.game_time,
		         game_date = EXCLUDED.game_date,
		         status = EXCLUDED.status,
		         home_shares = EXCLUDED.home_shares,
		         away_shares = EXCLUDED.away_shares,
		         home_price = EXCLUDED.home_price,
		         away_price = EXCLUDED.away_price,
		         total_volume = EXCLUDED.total_volume,
		         winner = EXCLUDED.winner,
		         home_score = EXCLUDED.home_score,
		         away_score = EXCLUDED.away_score,
		         home_rating = EXCLUDED.home_rating,
		         away_rating = EXCLUDED.away_rating,
		         settled_at = EXCLUDED.settled_at`,
		m.ID, m.GameID, m.HomeTeam, m.AwayTeam, m.Sport,
		m.GameTime, m.GameDate, m.Status,
		m.HomeShares.String(), m.AwayShares.String(), m.B.String(),
		m.HomePrice.String(), m.AwayPrice.String(), m.TotalVolume.String(),
		m.Winner, m.HomeScore, m.AwayScore,
		m.HomeRating, m.AwayRating, m.CreatedAt, m.SettledAt,
	)
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE market_id = $1`, id)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) GetMarketByGame(ctx context.Context, gameID string) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE game_id = $1`, gameID)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("market for game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market by game %s: %w", gameID, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context, status string) ([]model.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID, marketID string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, market_id,
		        home_shares::TEXT, away_shares::TEXT,
		        avg_home_price::TEXT, avg_away_price::TEXT, updated_at
		 FROM positions WHERE user_id = $1 AND market_id = $2`, userID, marketID)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("position %s/%s: %w", userID, marketID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s/%s: %w", userID, marketID, err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (user_id, market_id, home_shares, away_shares,
		                        avg_home_price, avg_away_price, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7)
		 ON CONFLICT (user_id, market_id) DO UPDATE SET
		         home_shares = EXCLUDED.home_shares,
		         away_shares = EXCLUDED.away_shares,
		         avg_home_price = EXCLUDED.avg_home_price,
		         avg_away_price = EXCLUDED.avg_away_price,
		         updated_at = EXCLUDED.updated_at`,
		p.UserID, p.MarketID,
		p.HomeShares.String(), p.AwayShares.String(),
		p.AvgHomePrice.String(), p.AvgAwayPrice.String(), p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, market_id,
		        home_shares::TEXT, away_shares::TEXT,
		        avg_home_price::TEXT, avg_away_price::TEXT, updated_at
		 FROM positions WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (s *PostgresStore) ListMarketPositions(ctx context.Context, marketID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, market_id,
		        home_shares::TEXT, away_shares::TEXT,
		        avg_home_price::TEXT, avg_away_price::TEXT, updated_at
		 FROM positions WHERE market_id = $1`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, balance, created_at)
		 VALUES ($1, $2::NUMERIC, $3)`,
		u.ID, u.Balance.String(), u.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var balance string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, balance::TEXT, created_at FROM users WHERE user_id = $1`, id).
		Scan(&u.ID, &balance, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Balance, _ = decimal.NewFromString(balance)
	return &u, nil
}

func (s *PostgresStore) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET balance = GREATEST($2::NUMERIC, 0) WHERE user_id = $1`,
		userID, balance.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) InsertPriceSnapshot(ctx context.Context, snap *model.PriceSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (market_id, home_price, away_price,
		                            home_shares, away_shares, total_volume, timestamp)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7)`,
		snap.MarketID,
		snap.HomePrice.String(), snap.AwayPrice.String(),
		snap.HomeShares.String(), snap.AwayShares.String(),
		snap.TotalVolume.String(), snap.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetPriceHistory(ctx context.Context, marketID string, limit int) ([]model.PriceSnapshot, error) {
	query := `SELECT market_id, home_price::TEXT, away_price::TEXT,
	                 home_shares::TEXT, away_shares::TEXT, total_volume::TEXT, timestamp
	          FROM price_history WHERE market_id = $1 ORDER BY timestamp`
	args := []interface{}{marketID}
	if limit > 0 {
		// Newest N points, still returned oldest-first.
		query = `SELECT * FROM (` + query + ` DESC LIMIT $2) sub ORDER BY timestamp`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.PriceSnapshot
	for rows.Next() {
		var snap model.PriceSnapshot
		var homePrice, awayPrice, homeShares, awayShares, volume string

		if err := rows.Scan(&snap.MarketID, &homePrice, &awayPrice,
			&homeShares, &awayShares, &volume, &snap.Timestamp); err != nil {
			return nil, err
		}

		snap.HomePrice, _ = decimal.NewFromString(homePrice)
		snap.AwayPrice, _ = decimal.NewFromString(awayPrice)
		snap.HomeShares, _ = decimal.NewFromString(homeShares)
		snap.AwayShares, _ = decimal.NewFromString(awayShares)
		snap.TotalVolume, _ = decimal.NewFromString(volume)

		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// pgxRow covers both QueryRow results and iterating rows.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var homeShares, awayShares, b, homePrice, awayPrice, volume string

	if err := row.Scan(&m.ID, &m.GameID, &m.HomeTeam, &m.AwayTeam, &m.Sport,
		&m.GameTime, &m.GameDate, &m.Status,
		&homeShares, &awayShares, &b,
		&homePrice, &awayPrice, &volume,
		&m.Winner, &m.HomeScore, &m.AwayScore,
		&m.HomeRating, &m.AwayRating, &m.CreatedAt, &m.SettledAt); err != nil {
		return nil, err
	}

	m.HomeShares, _ = decimal.NewFromString(homeShares)
	m.AwayShares, _ = decimal.NewFromString(awayShares)
	m.B, _ = decimal.NewFromString(b)
	m.HomePrice, _ = decimal.NewFromString(homePrice)
	m.AwayPrice, _ = decimal.NewFromString(awayPrice)
	m.TotalVolume, _ = decimal.NewFromString(volume)

	return &m, nil
}

func scanPosition(row pgxRow) (*model.Position, error) {
	var p model.Position
	var homeShares, awayShares, avgHome, avgAway string

	if err := row.Scan(&p.UserID, &p.MarketID,
		&homeShares, &awayShares, &avgHome, &avgAway, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.HomeShares, _ = decimal.NewFromString(homeShares)
	p.AwayShares, _ = decimal.NewFromString(awayShares)
	p.AvgHomePrice, _ = decimal.NewFromString(avgHome)
	p.AvgAwayPrice, _ = decimal.NewFromString(avgAway)

	return &p, nil
}

func scanPositions(rows pgx.Rows) ([]model.Position, error) {
	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}
