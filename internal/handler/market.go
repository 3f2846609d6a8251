package handler

import (
	"net/http"

	"github.com/sakif/expense-tracker/internal/marketdata"
)

// MarketHandler exposes the NSE index proxy.
type MarketHandler struct {
	client *marketdata.Client
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(client *marketdata.Client) *MarketHandler {
	return &MarketHandler{client: client}
}

// HandleMarketData returns the current index snapshot. Upstream failures
// still answer 200 with the degraded payload; this endpoint never 5xxs over
// the market being unreachable.
//
// HTTP: GET /api/market-data/
func (h *MarketHandler) HandleMarketData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.client.Snapshot(r.Context()))
}
