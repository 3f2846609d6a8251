package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/service"
)

// LedgerHandler exposes income/expense recording and the dashboard views.
type LedgerHandler struct {
	ledger *service.LedgerService
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(ledger *service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// Amounts arrive as JSON numbers or quoted decimal strings; shopspring
// decimal accepts both. Dates are "YYYY-MM-DD" or RFC 3339 strings.
type addIncomeRequest struct {
	RiderID string          `json:"rider_id" validate:"required"`
	Source  string          `json:"source" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Date    string          `json:"date"`
	Notes   string          `json:"notes"`
}

// HandleAddIncome records an income entry.
//
// HTTP: POST /api/income/add/
func (h *LedgerHandler) HandleAddIncome(w http.ResponseWriter, r *http.Request) {
	var req addIncomeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	income, err := h.ledger.AddIncome(r.Context(), req.RiderID, req.Source, req.Amount, date, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Income added successfully",
		"income":  income,
	})
}

type addExpenseRequest struct {
	RiderID  string          `json:"rider_id" validate:"required"`
	Category string          `json:"category" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date"`
	Notes    string          `json:"notes"`
}

// HandleAddExpense records an expense entry.
//
// HTTP: POST /api/expense/add/
func (h *LedgerHandler) HandleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	expense, err := h.ledger.AddExpense(r.Context(), req.RiderID, req.Category, req.Amount, date, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Expense added successfully",
		"expense": expense,
	})
}

// HandleDashboard returns the rider's lifetime totals.
//
// HTTP: GET /api/dashboard/?rider_id=
func (h *LedgerHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	totals, err := h.ledger.Dashboard(r.Context(), queryRiderID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// HandleRecentTransactions returns the merged recent-activity view.
//
// HTTP: GET /api/transactions/recent/?rider_id=[&limit=]
func (h *LedgerHandler) HandleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 {
			limit = n
		}
	}

	txs, err := h.ledger.RecentTransactions(r.Context(), queryRiderID(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}
