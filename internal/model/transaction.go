package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Income is a single income entry in the ledger, owned by exactly one
// account. Amount is always stored and serialized with 2 fraction digits;
// shopspring/decimal marshals to a quoted decimal string in JSON.
type Income struct {
	ID        string          `json:"id"`
	AccountID string          `json:"-"`
	Source    string          `json:"source"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
}

// Expense mirrors Income with a category label instead of a source.
type Expense struct {
	ID        string          `json:"id"`
	AccountID string          `json:"-"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
}

// TransactionType discriminates merged ledger entries.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is the merged view used by the recent-transactions endpoint.
// Source is set for incomes, Category for expenses; the other is omitted.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Source    string          `json:"source,omitempty"`
	Category  string          `json:"category,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
}

// DashboardTotals aggregates the ledger for one account. TotalSaving and
// Balance are currently computed identically; both fields are kept for
// interface compatibility.
type DashboardTotals struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	TotalSaving  decimal.Decimal `json:"total_saving"`
	Balance      decimal.Decimal `json:"balance"`
}
