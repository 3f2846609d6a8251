package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/repository"
)

// compile-time check that *DB implements repository.LedgerRepository
var _ repository.LedgerRepository = (*DB)(nil)

// CreateIncome persists an income row. The amount is normalized to exactly
// 2 fraction digits on write.
func (db *DB) CreateIncome(ctx context.Context, income *model.Income) error {
	income.ID = xid.New().String()
	income.CreatedAt = time.Now().UTC()
	income.Amount = income.Amount.Round(2)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO incomes (id, account_id, source, amount, date, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		income.ID, income.AccountID, income.Source, income.Amount.StringFixed(2),
		income.Date.UTC(), income.Notes, income.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting income: %w", err)
	}
	return nil
}

// CreateExpense persists an expense row.
func (db *DB) CreateExpense(ctx context.Context, expense *model.Expense) error {
	expense.ID = xid.New().String()
	expense.CreatedAt = time.Now().UTC()
	expense.Amount = expense.Amount.Round(2)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO expenses (id, account_id, category, amount, date, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.AccountID, expense.Category, expense.Amount.StringFixed(2),
		expense.Date.UTC(), expense.Notes, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting expense: %w", err)
	}
	return nil
}

// Totals sums all income and expense amounts for the account. Amounts are
// TEXT columns, so the summation happens in decimal on the Go side rather
// than in SQL float arithmetic. Empty ledgers yield zero.
func (db *DB) Totals(ctx context.Context, accountID string) (decimal.Decimal, decimal.Decimal, error) {
	income, err := db.sumAmounts(ctx, `SELECT amount FROM incomes WHERE account_id = ?`, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sqlite: summing incomes: %w", err)
	}

	expense, err := db.sumAmounts(ctx, `SELECT amount FROM expenses WHERE account_id = ?`, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sqlite: summing expenses: %w", err)
	}

	return income, expense, nil
}

func (db *DB) sumAmounts(ctx context.Context, query, accountID string) (decimal.Decimal, error) {
	rows, err := db.conn.QueryContext(ctx, query, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing stored amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// RecentIncomes returns up to limit income rows ordered by date descending;
// the row id breaks date ties so the order is stable across calls.
func (db *DB) RecentIncomes(ctx context.Context, accountID string, limit int) ([]model.Income, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, account_id, source, amount, date, notes, created_at
		 FROM incomes WHERE account_id = ?
		 ORDER BY date DESC, id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent incomes: %w", err)
	}
	defer rows.Close()

	incomes := []model.Income{}
	for rows.Next() {
		var inc model.Income
		var raw string
		if err := rows.Scan(&inc.ID, &inc.AccountID, &inc.Source, &raw, &inc.Date, &inc.Notes, &inc.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning income: %w", err)
		}
		if inc.Amount, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("sqlite: parsing income amount %q: %w", raw, err)
		}
		incomes = append(incomes, inc)
	}
	return incomes, rows.Err()
}

// RecentExpenses mirrors RecentIncomes for the expenses table.
func (db *DB) RecentExpenses(ctx context.Context, accountID string, limit int) ([]model.Expense, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, account_id, category, amount, date, notes, created_at
		 FROM expenses WHERE account_id = ?
		 ORDER BY date DESC, id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent expenses: %w", err)
	}
	defer rows.Close()

	expenses := []model.Expense{}
	for rows.Next() {
		var exp model.Expense
		var raw string
		if err := rows.Scan(&exp.ID, &exp.AccountID, &exp.Category, &raw, &exp.Date, &exp.Notes, &exp.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning expense: %w", err)
		}
		if exp.Amount, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("sqlite: parsing expense amount %q: %w", raw, err)
		}
		expenses = append(expenses, exp)
	}
	return expenses, rows.Err()
}
