package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/service"
)

// PortfolioHandler exposes mutual fund CRUD and the portfolio summary.
type PortfolioHandler struct {
	portfolio *service.PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio *service.PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logger}
}

type addFundRequest struct {
	RiderID        string          `json:"rider_id" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	FundType       string          `json:"fund_type"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	CurrentValue   decimal.Decimal `json:"current_value"`
}

// HandleAddFund records a new holding.
//
// HTTP: POST /api/funds/add/
func (h *PortfolioHandler) HandleAddFund(w http.ResponseWriter, r *http.Request) {
	var req addFundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.portfolio.AddFund(r.Context(), req.RiderID, req.Name, req.FundType, req.InvestedAmount, req.CurrentValue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Fund added successfully",
		"fund":    fund,
	})
}

// HandleListFunds lists the rider's holdings, newest first.
//
// HTTP: GET /api/funds/?rider_id=
func (h *PortfolioHandler) HandleListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.portfolio.ListFunds(r.Context(), queryRiderID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if funds == nil {
		funds = []model.MutualFund{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"funds": funds})
}

type updateFundRequest struct {
	RiderID        string           `json:"rider_id" validate:"required"`
	Name           *string          `json:"name"`
	FundType       *string          `json:"fund_type"`
	InvestedAmount *decimal.Decimal `json:"invested_amount"`
	CurrentValue   *decimal.Decimal `json:"current_value"`
}

// HandleUpdateFund partially updates a holding.
//
// HTTP: POST /api/funds/update/{fundID}/
func (h *PortfolioHandler) HandleUpdateFund(w http.ResponseWriter, r *http.Request) {
	var req updateFundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.portfolio.UpdateFund(r.Context(), req.RiderID, chi.URLParam(r, "fundID"),
		req.Name, req.FundType, req.InvestedAmount, req.CurrentValue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Fund updated successfully",
		"fund":    fund,
	})
}

type deleteFundRequest struct {
	RiderID string `json:"rider_id" validate:"required"`
	FundID  string `json:"fund_id" validate:"required"`
}

// HandleDeleteFund removes a holding.
//
// HTTP: DELETE /api/funds/delete/
func (h *PortfolioHandler) HandleDeleteFund(w http.ResponseWriter, r *http.Request) {
	var req deleteFundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.portfolio.DeleteFund(r.Context(), req.RiderID, req.FundID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSummary returns the portfolio aggregate view.
//
// HTTP: GET /api/portfolio/summary/?rider_id=
func (h *PortfolioHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.portfolio.Summary(r.Context(), queryRiderID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
