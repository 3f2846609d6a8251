// Package repository defines the storage interfaces the service layer
// programs against. The sqlite package provides the real implementation;
// tests provide in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/model"
)

// AccountRepository owns Account, Profile and RiderInfo records.
//
// Create allocates the rider identifier and writes all three rows in a
// single transaction; UpdateEmail dual-writes accounts.email and
// rider_info.email the same way. Delete relies on foreign-key cascade to
// remove everything the account owns.
type AccountRepository interface {
	Create(ctx context.Context, acc *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByRiderID(ctx context.Context, riderID string) (*model.Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailInUse(ctx context.Context, email, excludeAccountID string) (bool, error)
	UpdateEmail(ctx context.Context, accountID, email string) error
	UpdatePassword(ctx context.Context, accountID, passwordHash string) error
	UpdateName(ctx context.Context, accountID, firstName, lastName string) error
	UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error
	Delete(ctx context.Context, accountID string) error

	GetProfile(ctx context.Context, accountID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, accountID string, location, avatar *string) error

	ListRiders(ctx context.Context) ([]model.RiderSummary, error)
	GetRiderByEmail(ctx context.Context, email string) (*model.RiderSummary, error)
	GetRiderByIDAndEmail(ctx context.Context, riderID, email string) (*model.RiderSummary, error)
}

// LedgerRepository owns Income and Expense rows scoped to an account.
type LedgerRepository interface {
	CreateIncome(ctx context.Context, income *model.Income) error
	CreateExpense(ctx context.Context, expense *model.Expense) error
	Totals(ctx context.Context, accountID string) (income, expense decimal.Decimal, err error)
	RecentIncomes(ctx context.Context, accountID string, limit int) ([]model.Income, error)
	RecentExpenses(ctx context.Context, accountID string, limit int) ([]model.Expense, error)
}

// FundRepository owns MutualFund rows scoped to an account. GetByID and
// Delete take the owning account ID so a fund belonging to someone else is
// indistinguishable from a missing one.
type FundRepository interface {
	CreateFund(ctx context.Context, fund *model.MutualFund) error
	ListFunds(ctx context.Context, accountID string) ([]model.MutualFund, error)
	GetFund(ctx context.Context, fundID, accountID string) (*model.MutualFund, error)
	UpdateFund(ctx context.Context, fund *model.MutualFund) error
	DeleteFund(ctx context.Context, fundID, accountID string) error
}
