package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/apperror"
	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/repository"
)

// DefaultRecentLimit is how many entries of each kind the recent
// transactions view pulls when no limit is given.
const DefaultRecentLimit = 5

// LedgerService records incomes and expenses and computes the dashboard
// aggregates. All amounts are decimal; nothing here ever touches floats.
type LedgerService struct {
	accounts repository.AccountRepository
	ledger   repository.LedgerRepository
	logger   *slog.Logger
}

// NewLedgerService wires the ledger dependencies.
func NewLedgerService(accounts repository.AccountRepository, ledger repository.LedgerRepository, logger *slog.Logger) *LedgerService {
	return &LedgerService{accounts: accounts, ledger: ledger, logger: logger}
}

// resolve maps rider_id to the owning account, sharing the account store's
// validation semantics.
func (s *LedgerService) resolve(ctx context.Context, riderID string) (*model.Account, error) {
	riderID = strings.TrimSpace(riderID)
	if riderID == "" {
		return nil, apperror.ValidationFailed("rider_id", "rider_id is required")
	}
	return s.accounts.GetByRiderID(ctx, riderID)
}

// AddIncome records an income entry for the rider. The amount is normalized
// to two decimal places before storage.
func (s *LedgerService) AddIncome(ctx context.Context, riderID, source string, amount decimal.Decimal, date time.Time, notes string) (*model.Income, error) {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	source = strings.TrimSpace(source)
	if source == "" {
		return nil, apperror.ValidationFailed("source", "source is required")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	income := &model.Income{
		AccountID: acc.ID,
		Source:    source,
		Amount:    amount.Round(2),
		Date:      date,
		Notes:     strings.TrimSpace(notes),
	}
	if err := s.ledger.CreateIncome(ctx, income); err != nil {
		return nil, fmt.Errorf("creating income: %w", err)
	}

	s.logger.Info("income recorded",
		slog.String("accountID", acc.ID),
		slog.String("amount", income.Amount.StringFixed(2)),
	)
	return income, nil
}

// AddExpense records an expense entry for the rider.
func (s *LedgerService) AddExpense(ctx context.Context, riderID, category string, amount decimal.Decimal, date time.Time, notes string) (*model.Expense, error) {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apperror.ValidationFailed("category", "category is required")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	expense := &model.Expense{
		AccountID: acc.ID,
		Category:  category,
		Amount:    amount.Round(2),
		Date:      date,
		Notes:     strings.TrimSpace(notes),
	}
	if err := s.ledger.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("creating expense: %w", err)
	}

	s.logger.Info("expense recorded",
		slog.String("accountID", acc.ID),
		slog.String("amount", expense.Amount.StringFixed(2)),
	)
	return expense, nil
}

// Dashboard computes the rider's lifetime totals. total_saving and balance
// are both income minus expense; the duplication is part of the response
// contract.
func (s *LedgerService) Dashboard(ctx context.Context, riderID string) (*model.DashboardTotals, error) {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	income, expense, err := s.ledger.Totals(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("computing totals: %w", err)
	}

	saving := income.Sub(expense)
	return &model.DashboardTotals{
		TotalIncome:  income,
		TotalExpense: expense,
		TotalSaving:  saving,
		Balance:      saving,
	}, nil
}

// RecentTransactions merges the rider's most recent incomes and expenses
// into one view, newest first. Each kind is fetched independently with the
// same limit, then the combined slice is stably sorted by date descending,
// so equal dates keep incomes ahead of expenses.
func (s *LedgerService) RecentTransactions(ctx context.Context, riderID string, limit int) ([]model.Transaction, error) {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	incomes, err := s.ledger.RecentIncomes(ctx, acc.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching recent incomes: %w", err)
	}
	expenses, err := s.ledger.RecentExpenses(ctx, acc.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching recent expenses: %w", err)
	}

	txs := make([]model.Transaction, 0, len(incomes)+len(expenses))
	for _, in := range incomes {
		txs = append(txs, model.Transaction{
			ID:     in.ID,
			Type:   model.TransactionIncome,
			Source: in.Source,
			Amount: in.Amount,
			Date:   in.Date,
			Notes:  in.Notes,
		})
	}
	for _, ex := range expenses {
		txs = append(txs, model.Transaction{
			ID:       ex.ID,
			Type:     model.TransactionExpense,
			Category: ex.Category,
			Amount:   ex.Amount,
			Date:     ex.Date,
			Notes:    ex.Notes,
		})
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})

	return txs, nil
}
