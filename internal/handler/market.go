package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"tradedesk/internal/domain"
	"tradedesk/internal/httputil"
)

// MarketHandler serves read-only market endpoints used by the client's
// chart and leaderboard views.
type MarketHandler struct {
	market      domain.MarketData
	leaderboard domain.LeaderboardRepository
	logger      *slog.Logger
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(market domain.MarketData, leaderboard domain.LeaderboardRepository, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		market:      market,
		leaderboard: leaderboard,
		logger:      logger,
	}
}

// GetHistory returns the historical price series for one symbol.
// GET /api/stocks/{symbol}/history?period=1mo
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	points, err := h.market.History(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		h.logger.Warn("history fetch failed", "symbol", symbol, "error", err)
		httputil.RespondError(w, http.StatusBadGateway, "failed to fetch price history")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"points": points,
	})
}

// GetLeaderboard returns the top simulated portfolios by total value.
// GET /api/leaderboard?limit=10
func (h *MarketHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			httputil.RespondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	entries, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		handleError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardSnapshot{}
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"leaderboard": entries,
	})
}
