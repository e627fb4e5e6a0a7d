package trade

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polyjacket/market-engine/internal/model"
	"github.com/polyjacket/market-engine/internal/solver"
	"github.com/polyjacket/market-engine/internal/store"
)

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	UserID   string          `json:"user_id"`
	MarketID string          `json:"market_id"`
	Side     string          `json:"side"`   // "home" or "away"
	Amount   decimal.Decimal `json:"amount"` // token budget to spend
}

// Routes mounts all service endpoints on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/api/v1/markets", s.handleListMarkets)
	r.Get("/api/v1/markets/{marketID}", s.handleGetMarket)
	r.Get("/api/v1/markets/{marketID}/price", s.handleGetPrice)
	r.Get("/api/v1/markets/{marketID}/history", s.handleGetHistory)
	r.Post("/api/v1/trade", s.handleTrade)
	r.Post("/api/v1/users", s.handleCreateUser)
	r.Get("/api/v1/users/{userID}", s.handleGetUser)
	r.Get("/api/v1/portfolio/{userID}", s.handleGetPortfolio)
	r.Get("/api/v1/ratings", s.handleGetRatings)
}

// handleTrade handles POST /api/v1/trade.
func (s *Service) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.MarketID == "" {
		writeError(w, "market_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.ExecuteTrade(r.Context(), req.UserID, req.MarketID, req.Side, req.Amount)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListMarkets handles GET /api/v1/markets?status=open.
func (s *Service) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	markets, err := s.store.ListMarkets(r.Context(), status)
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// handleGetMarket handles GET /api/v1/markets/{marketID}.
func (s *Service) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleGetPrice handles GET /api/v1/markets/{marketID}/price. Reads are
// lock-free: the stored prices are a consistent snapshot from the last
// write under the market lock.
func (s *Service) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"home": m.HomePrice,
		"away": m.AwayPrice,
	})
}

// handleGetHistory handles GET /api/v1/markets/{marketID}/history?limit=N.
func (s *Service) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	snaps, err := s.store.GetPriceHistory(r.Context(), chi.URLParam(r, "marketID"), limit)
	if err != nil {
		writeError(w, "failed to get price history", http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []model.PriceSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// handleCreateUser handles POST /api/v1/users. New users get a fresh ID
// and the configured starting balance.
func (s *Service) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	user := &model.User{
		ID:        uuid.New().String(),
		Balance:   s.starting,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeError(w, "failed to create user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser handles GET /api/v1/users/{userID}.
func (s *Service) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleGetPortfolio handles GET /api/v1/portfolio/{userID}.
func (s *Service) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	pf, err := s.GetPortfolio(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// handleGetRatings handles GET /api/v1/ratings.
func (s *Service) handleGetRatings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ratings())
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidSide),
		errors.Is(err, solver.ErrInvalidBudget),
		errors.Is(err, solver.ErrTradeTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, ErrMarketNotOpen),
		errors.Is(err, ErrInsufficientBalance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
