package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/apperror"
	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/repository"
)

// compile-time check that *DB implements repository.FundRepository
var _ repository.FundRepository = (*DB)(nil)

// CreateFund persists a mutual fund holding.
func (db *DB) CreateFund(ctx context.Context, fund *model.MutualFund) error {
	fund.ID = xid.New().String()
	fund.CreatedAt = time.Now().UTC()
	fund.InvestedAmount = fund.InvestedAmount.Round(2)
	fund.CurrentValue = fund.CurrentValue.Round(2)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO mutual_funds (id, account_id, name, fund_type, invested_amount, current_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fund.ID, fund.AccountID, fund.Name, fund.FundType,
		fund.InvestedAmount.StringFixed(2), fund.CurrentValue.StringFixed(2), fund.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting fund: %w", err)
	}
	return nil
}

func scanFund(scan func(dest ...any) error) (*model.MutualFund, error) {
	var f model.MutualFund
	var invested, current string

	if err := scan(&f.ID, &f.AccountID, &f.Name, &f.FundType, &invested, &current, &f.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if f.InvestedAmount, err = decimal.NewFromString(invested); err != nil {
		return nil, fmt.Errorf("parsing invested amount %q: %w", invested, err)
	}
	if f.CurrentValue, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parsing current value %q: %w", current, err)
	}
	return &f, nil
}

// ListFunds returns all funds owned by the account, newest first.
func (db *DB) ListFunds(ctx context.Context, accountID string) ([]model.MutualFund, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, account_id, name, fund_type, invested_amount, current_value, created_at
		 FROM mutual_funds WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing funds: %w", err)
	}
	defer rows.Close()

	funds := []model.MutualFund{}
	for rows.Next() {
		f, err := scanFund(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning fund: %w", err)
		}
		funds = append(funds, *f)
	}
	return funds, rows.Err()
}

// GetFund fetches a fund by ID scoped to its owning account. A fund owned
// by a different account comes back as not-found, never as someone else's
// data.
func (db *DB) GetFund(ctx context.Context, fundID, accountID string) (*model.MutualFund, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, account_id, name, fund_type, invested_amount, current_value, created_at
		 FROM mutual_funds WHERE id = ? AND account_id = ?`, fundID, accountID)

	f, err := scanFund(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMsg("Fund not found")
		}
		return nil, fmt.Errorf("sqlite: getting fund %s: %w", fundID, err)
	}
	return f, nil
}

// UpdateFund writes the full fund row back; callers fetch-then-update so
// partial changes merge before the write.
func (db *DB) UpdateFund(ctx context.Context, fund *model.MutualFund) error {
	fund.InvestedAmount = fund.InvestedAmount.Round(2)
	fund.CurrentValue = fund.CurrentValue.Round(2)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE mutual_funds SET name = ?, fund_type = ?, invested_amount = ?, current_value = ?
		 WHERE id = ? AND account_id = ?`,
		fund.Name, fund.FundType, fund.InvestedAmount.StringFixed(2), fund.CurrentValue.StringFixed(2),
		fund.ID, fund.AccountID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating fund %s: %w", fund.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFoundMsg("Fund not found")
	}
	return nil
}

// DeleteFund removes a fund scoped to its owning account.
func (db *DB) DeleteFund(ctx context.Context, fundID, accountID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM mutual_funds WHERE id = ? AND account_id = ?`, fundID, accountID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting fund %s: %w", fundID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFoundMsg("Fund not found.")
	}
	return nil
}
