package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/expense-tracker/internal/apperror"
	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/repository"
	"github.com/sakif/expense-tracker/internal/riderid"
)

// compile-time check that *DB implements repository.AccountRepository
var _ repository.AccountRepository = (*DB)(nil)

// maxRiderIDAttempts bounds the allocation retry loop. With 10^8 possible
// identifiers, hitting this limit means the table is pathologically full.
const maxRiderIDAttempts = 10

// Create inserts the Account together with its Profile and RiderInfo rows
// in one transaction.
//
// Rider identifier allocation: a candidate is generated and inserted under
// the UNIQUE constraints on profiles.rider_id and rider_info.rider_id. A
// constraint failure rolls the transaction back and retries with a fresh
// candidate, so two concurrent registrations picking the same candidate
// resolve at the store, not in a racy pre-check.
func (db *DB) Create(ctx context.Context, acc *model.Account) error {
	now := time.Now().UTC()
	acc.ID = xid.New().String()
	acc.DateJoined = now

	gen := db.genRiderID
	if gen == nil {
		gen = riderid.New
	}

	for attempt := 0; attempt < maxRiderIDAttempts; attempt++ {
		candidate := gen()

		err := db.createRows(ctx, acc, candidate, now)
		if err == nil {
			acc.RiderID = candidate
			return nil
		}
		if isUniqueViolation(err, "profiles.rider_id") || isUniqueViolation(err, "rider_info.rider_id") {
			continue // collision — regenerate and retry
		}
		if isUniqueViolation(err, "accounts.username") {
			// Lost a race with a concurrent registration deriving the
			// same username. The service retries derivation.
			return apperror.Conflict("username", "Username already exists. Please try another.")
		}
		return err
	}

	return fmt.Errorf("sqlite: allocating rider id: no free identifier after %d attempts", maxRiderIDAttempts)
}

// createRows runs the three inserts of a registration in one transaction.
func (db *DB) createRows(ctx context.Context, acc *model.Account, riderID string, now time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning registration tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, password_hash, first_name, last_name, date_joined)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		acc.ID, acc.Username, acc.Email, acc.PasswordHash, acc.FirstName, acc.LastName, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting account (username=%s): %w", acc.Username, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, account_id, rider_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		xid.New().String(), acc.ID, riderID, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rider_info (id, account_id, rider_id, email, username, is_active, created_at, last_activity)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		xid.New().String(), acc.ID, riderID, acc.Email, acc.Username, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting rider info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing registration: %w", err)
	}
	return nil
}

const accountColumns = `a.id, a.username, a.email, a.password_hash, a.first_name, a.last_name,
	a.date_joined, a.last_login, p.rider_id`

// scanAccount reads one account row (joined with its profile for rider_id).
func scanAccount(row *sql.Row) (*model.Account, error) {
	var a model.Account
	var lastLogin sql.NullTime

	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName,
		&a.DateJoined, &lastLogin, &a.RiderID,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLogin = &t
	}
	return &a, nil
}

// GetByID retrieves an account by its internal ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a JOIN profiles p ON p.account_id = a.id
		 WHERE a.id = ?`, id)

	acc, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return acc, nil
}

// GetByEmail retrieves the account registered with the given email,
// case-insensitively. When several accounts share an email (a tolerated
// anomaly — there is no UNIQUE constraint), the earliest-created wins.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a JOIN profiles p ON p.account_id = a.id
		 WHERE lower(a.email) = lower(?)
		 ORDER BY a.date_joined ASC, a.id ASC
		 LIMIT 1`, email)

	acc, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}
	return acc, nil
}

// GetByRiderID resolves a rider identifier to its owning account — the
// canonical ownership check behind every rider-scoped operation.
func (db *DB) GetByRiderID(ctx context.Context, riderID string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a JOIN profiles p ON p.account_id = a.id
		 WHERE p.rider_id = ?`, riderID)

	acc, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMsg("Invalid rider_id")
		}
		return nil, fmt.Errorf("sqlite: getting account by rider id %s: %w", riderID, err)
	}
	return acc, nil
}

// UsernameExists reports whether any account holds the given username.
func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE username = ?`, username,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking username %s: %w", username, err)
	}
	return count > 0, nil
}

// EmailInUse reports whether any account other than excludeAccountID uses
// the given email (case-insensitive). Pass "" to check against all
// accounts.
func (db *DB) EmailInUse(ctx context.Context, email, excludeAccountID string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE lower(email) = lower(?) AND id <> ?`,
		email, excludeAccountID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking email: %w", err)
	}
	return count > 0, nil
}

// UpdateEmail writes the new email to the account AND its RiderInfo row in
// one transaction, keeping the denormalized copy in step.
func (db *DB) UpdateEmail(ctx context.Context, accountID, email string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning email update tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET email = ? WHERE id = ?`, email, accountID)
	if err != nil {
		return fmt.Errorf("sqlite: updating account email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("account", accountID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE rider_info SET email = ?, last_activity = ? WHERE account_id = ?`,
		email, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("sqlite: updating rider info email: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing email update: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored credential hash.
func (db *DB) UpdatePassword(ctx context.Context, accountID, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ? WHERE id = ?`, passwordHash, accountID)
	if err != nil {
		return fmt.Errorf("sqlite: updating password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("account", accountID)
	}
	return nil
}

// UpdateName updates the display name fields and touches the RiderInfo
// last_activity timestamp in the same transaction.
func (db *DB) UpdateName(ctx context.Context, accountID, firstName, lastName string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning name update tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET first_name = ?, last_name = ? WHERE id = ?`,
		firstName, lastName, accountID)
	if err != nil {
		return fmt.Errorf("sqlite: updating name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("account", accountID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE rider_info SET last_activity = ? WHERE account_id = ?`,
		time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("sqlite: touching rider activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing name update: %w", err)
	}
	return nil
}

// UpdateLastLogin records a successful authentication.
func (db *DB) UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET last_login = ? WHERE id = ?`, at.UTC(), accountID)
	if err != nil {
		return fmt.Errorf("sqlite: updating last login: %w", err)
	}
	return nil
}

// Delete removes the account; the ON DELETE CASCADE foreign keys take the
// profile, rider info, ledger rows and funds with it.
func (db *DB) Delete(ctx context.Context, accountID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting account %s: %w", accountID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("account", accountID)
	}
	return nil
}

// GetProfile returns the profile owned by the account.
func (db *DB) GetProfile(ctx context.Context, accountID string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, account_id, location, avatar, rider_id, created_at
		 FROM profiles WHERE account_id = ?`, accountID,
	).Scan(&p.ID, &p.AccountID, &p.Location, &p.Avatar, &p.RiderID, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("profile", accountID)
		}
		return nil, fmt.Errorf("sqlite: getting profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile applies a partial update: nil pointers leave the field
// unchanged.
func (db *DB) UpdateProfile(ctx context.Context, accountID string, location, avatar *string) error {
	if location == nil && avatar == nil {
		return nil
	}

	profile, err := db.GetProfile(ctx, accountID)
	if err != nil {
		return err
	}
	if location != nil {
		profile.Location = *location
	}
	if avatar != nil {
		profile.Avatar = *avatar
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE profiles SET location = ?, avatar = ? WHERE account_id = ?`,
		profile.Location, profile.Avatar, accountID)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile: %w", err)
	}
	return nil
}

const riderSummaryColumns = `ri.rider_id, a.id, ri.username, ri.email, a.first_name, a.last_name,
	a.date_joined, a.last_login, COALESCE(p.location, ''), ri.is_active, ri.created_at, ri.last_activity`

const riderSummaryFrom = ` FROM rider_info ri
	JOIN accounts a ON a.id = ri.account_id
	LEFT JOIN profiles p ON p.account_id = a.id`

func scanRiderSummary(scan func(dest ...any) error) (*model.RiderSummary, error) {
	var s model.RiderSummary
	var lastLogin sql.NullTime

	err := scan(
		&s.RiderID, &s.UserID, &s.Username, &s.Email, &s.FirstName, &s.LastName,
		&s.DateJoined, &lastLogin, &s.Location, &s.IsActive, &s.RiderCreatedAt, &s.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		s.LastLogin = &t
	}
	return &s, nil
}

// ListRiders returns every rider's denormalized record joined with the live
// profile location. The LEFT JOIN keeps riders whose profile row is missing
// (location comes back as ""), matching the tolerant read path.
func (db *DB) ListRiders(ctx context.Context) ([]model.RiderSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+riderSummaryColumns+riderSummaryFrom+` ORDER BY ri.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing riders: %w", err)
	}
	defer rows.Close()

	summaries := []model.RiderSummary{}
	for rows.Next() {
		s, err := scanRiderSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning rider summary: %w", err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating riders: %w", err)
	}
	return summaries, nil
}

// GetRiderByEmail looks up a rider through the denormalized index,
// case-insensitively.
func (db *DB) GetRiderByEmail(ctx context.Context, email string) (*model.RiderSummary, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+riderSummaryColumns+riderSummaryFrom+` WHERE lower(ri.email) = lower(?)`, email)

	s, err := scanRiderSummary(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMsg("No rider found with this email")
		}
		return nil, fmt.Errorf("sqlite: getting rider by email: %w", err)
	}
	return s, nil
}

// GetRiderByIDAndEmail returns the rider only when BOTH fields match the
// RiderInfo row exactly — the verification contract is an exact pair match,
// not a case-insensitive one.
func (db *DB) GetRiderByIDAndEmail(ctx context.Context, riderID, email string) (*model.RiderSummary, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+riderSummaryColumns+riderSummaryFrom+` WHERE ri.rider_id = ? AND ri.email = ?`,
		riderID, email)

	s, err := scanRiderSummary(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMsg("Rider ID and email do not match")
		}
		return nil, fmt.Errorf("sqlite: verifying rider: %w", err)
	}
	return s, nil
}
