// Package service contains the business logic layer: validation, ownership
// checks and orchestration between the HTTP handlers and the repositories.
// Services accept primitives and return domain models plus apperror values;
// they know nothing about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/expense-tracker/internal/apperror"
	"github.com/sakif/expense-tracker/internal/auth"
	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/repository"
)

const (
	// MinPasswordLength applies at registration (the original system never
	// re-checks it on password change).
	MinPasswordLength = 6
	// MaxNameLength caps first/last name fields.
	MaxNameLength = 150
)

// usernameRaceRetries bounds re-derivation when a concurrent registration
// claims the same derived username between our check and the insert.
const usernameRaceRetries = 3

// AccountService implements the account store: registration, login, rider
// resolution, identity mutation and the rider directory.
//
// tokens may be nil (JWT disabled); register/login then simply omit the
// session token from their results.
type AccountService struct {
	repo      repository.AccountRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

// NewAccountService wires the account store dependencies.
func NewAccountService(
	repo repository.AccountRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:      repo,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// AuthResult bundles the account and the session token issued for it.
// Token is empty when JWT is not configured.
type AuthResult struct {
	Account *model.Account
	Token   string
}

// Register creates a new account with its profile and rider record.
//
// The username is derived from the name ("John Smith" → "johnsmith"); when
// taken, integer suffixes are tried in order (johnsmith1, johnsmith2, ...).
// The bare base is always tried first. An empty base falls back to "user".
func (s *AccountService) Register(ctx context.Context, email, password, confirmPassword, firstName, lastName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	if err := validateRegistration(email, password, confirmPassword, firstName, lastName); err != nil {
		return nil, err
	}

	inUse, err := s.repo.EmailInUse(ctx, email, "")
	if err != nil {
		return nil, fmt.Errorf("checking email availability: %w", err)
	}
	if inUse {
		return nil, apperror.ValidationFailed("email",
			"This email address is already registered. Please use a different email.")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	// The username check below is a pre-check only; the UNIQUE constraint
	// is authoritative, and a lost race surfaces as ErrConflict from
	// Create, at which point we re-derive and try again.
	var acc *model.Account
	for attempt := 0; ; attempt++ {
		username, err := s.deriveUsername(ctx, firstName, lastName)
		if err != nil {
			return nil, err
		}

		acc = &model.Account{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FirstName:    firstName,
			LastName:     lastName,
		}

		err = s.repo.Create(ctx, acc)
		if err == nil {
			break
		}
		if errors.Is(err, apperror.ErrConflict) && attempt < usernameRaceRetries {
			continue
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	s.logger.Info("account registered",
		slog.String("accountID", acc.ID),
		slog.String("username", acc.Username),
		slog.String("riderID", acc.RiderID),
	)

	return s.authResult(acc)
}

// validateRegistration collects per-field errors: every failing field is
// reported, not just the first.
func validateRegistration(email, password, confirmPassword, firstName, lastName string) error {
	fields := map[string]string{}

	if email == "" {
		fields["email"] = "Please enter a valid email address."
	}
	if len(password) < MinPasswordLength {
		fields["password"] = fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength)
	}
	if password != confirmPassword {
		fields["confirm_password"] = "Password and confirm password do not match."
	}
	if firstName == "" {
		fields["first_name"] = "First name is required."
	} else if len(firstName) > MaxNameLength {
		fields["first_name"] = fmt.Sprintf("First name cannot exceed %d characters", MaxNameLength)
	}
	if lastName == "" {
		fields["last_name"] = "Last name is required."
	} else if len(lastName) > MaxNameLength {
		fields["last_name"] = fmt.Sprintf("Last name cannot exceed %d characters", MaxNameLength)
	}

	if len(fields) > 0 {
		return apperror.ValidationFields("Registration failed. Please check the details below.", fields)
	}
	return nil
}

// deriveUsername builds the stripped-concatenation base and appends integer
// suffixes until a free name is found.
func (s *AccountService) deriveUsername(ctx context.Context, firstName, lastName string) (string, error) {
	base := strings.ReplaceAll(strings.ToLower(firstName+lastName), " ", "")
	if base == "" {
		base = "user"
	}

	username := base
	for counter := 1; ; counter++ {
		exists, err := s.repo.UsernameExists(ctx, username)
		if err != nil {
			return "", fmt.Errorf("checking username %s: %w", username, err)
		}
		if !exists {
			return username, nil
		}
		username = base + strconv.Itoa(counter)
	}
}

// Login authenticates by email and password. Unknown email and wrong
// password are deliberately indistinguishable to the caller. When several
// accounts share the email, the earliest-created one is authenticated
// (GetByEmail resolves the anomaly that way).
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Email and password are required.")
	}

	acc, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Invalid credentials")
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if err := s.passwords.Verify(acc.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("Invalid credentials")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, acc.ID, now); err != nil {
		// Login still succeeds; the timestamp is best-effort bookkeeping.
		s.logger.Error("failed to record last login",
			slog.String("accountID", acc.ID),
			slog.String("error", err.Error()),
		)
	} else {
		acc.LastLogin = &now
	}

	s.logger.Info("login", slog.String("accountID", acc.ID), slog.String("username", acc.Username))

	return s.authResult(acc)
}

func (s *AccountService) authResult(acc *model.Account) (*AuthResult, error) {
	res := &AuthResult{Account: acc}
	if s.tokens != nil {
		token, err := s.tokens.Generate(acc.ID)
		if err != nil {
			return nil, fmt.Errorf("generating session token: %w", err)
		}
		res.Token = token
	}
	return res, nil
}

// Resolve maps a rider identifier to its owning account. Every rider-scoped
// operation funnels through this check.
func (s *AccountService) Resolve(ctx context.Context, riderID string) (*model.Account, error) {
	riderID = strings.TrimSpace(riderID)
	if riderID == "" {
		return nil, apperror.ValidationFailed("rider_id", "rider_id is required")
	}
	return s.repo.GetByRiderID(ctx, riderID)
}

// GetByID returns the account for an internal ID (used by /api/me after the
// auth middleware validates the session token).
func (s *AccountService) GetByID(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "account ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// ChangeEmail verifies the caller's password, checks the new email isn't
// claimed by another account, then updates Account.email and
// RiderInfo.email together. A wrong password changes nothing.
func (s *AccountService) ChangeEmail(ctx context.Context, riderID, newEmail, currentPassword string) (string, error) {
	acc, err := s.Resolve(ctx, riderID)
	if err != nil {
		return "", err
	}

	if err := s.passwords.Verify(acc.PasswordHash, currentPassword); err != nil {
		return "", apperror.Unauthorized("Incorrect password.")
	}

	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" {
		return "", apperror.ValidationFailed("new_email", "new_email is required")
	}

	inUse, err := s.repo.EmailInUse(ctx, newEmail, acc.ID)
	if err != nil {
		return "", fmt.Errorf("checking email availability: %w", err)
	}
	if inUse {
		return "", apperror.ValidationFailed("new_email", "This email is already in use.")
	}

	if err := s.repo.UpdateEmail(ctx, acc.ID, newEmail); err != nil {
		return "", fmt.Errorf("updating email: %w", err)
	}

	s.logger.Info("email changed", slog.String("accountID", acc.ID))
	return newEmail, nil
}

// ChangePassword verifies the old password and replaces the stored hash.
func (s *AccountService) ChangePassword(ctx context.Context, riderID, oldPassword, newPassword, confirmNewPassword string) error {
	acc, err := s.Resolve(ctx, riderID)
	if err != nil {
		return err
	}

	if newPassword == "" || newPassword != confirmNewPassword {
		return apperror.ValidationFailed("new_password", "New passwords must match.")
	}

	if err := s.passwords.Verify(acc.PasswordHash, oldPassword); err != nil {
		return apperror.Unauthorized("Your old password was entered incorrectly. Please enter it again.")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, acc.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	s.logger.Info("password changed", slog.String("accountID", acc.ID))
	return nil
}

// DeleteAccount verifies the password, then removes the account and, by
// cascade, everything it owns.
func (s *AccountService) DeleteAccount(ctx context.Context, riderID, currentPassword string) error {
	acc, err := s.Resolve(ctx, riderID)
	if err != nil {
		return err
	}

	if err := s.passwords.Verify(acc.PasswordHash, currentPassword); err != nil {
		return apperror.Unauthorized("Incorrect password.")
	}

	if err := s.repo.Delete(ctx, acc.ID); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	s.logger.Info("account deleted",
		slog.String("accountID", acc.ID),
		slog.String("riderID", riderID),
	)
	return nil
}

// UpdatePersonalInfo applies a partial name update. nil means "leave
// unchanged"; at least one field must be supplied, and supplied fields must
// be non-blank after trimming and within the length cap. All failing fields
// are reported together.
func (s *AccountService) UpdatePersonalInfo(ctx context.Context, riderID string, firstName, lastName *string) (*model.Account, error) {
	acc, err := s.Resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	if firstName == nil && lastName == nil {
		return nil, apperror.ValidationFailed("",
			"At least one field (first_name or last_name) is required")
	}

	fields := map[string]string{}
	newFirst, newLast := acc.FirstName, acc.LastName

	if firstName != nil {
		trimmed := strings.TrimSpace(*firstName)
		switch {
		case trimmed == "":
			fields["first_name"] = "First name cannot be empty"
		case len(trimmed) > MaxNameLength:
			fields["first_name"] = fmt.Sprintf("First name cannot exceed %d characters", MaxNameLength)
		default:
			newFirst = trimmed
		}
	}
	if lastName != nil {
		trimmed := strings.TrimSpace(*lastName)
		switch {
		case trimmed == "":
			fields["last_name"] = "Last name cannot be empty"
		case len(trimmed) > MaxNameLength:
			fields["last_name"] = fmt.Sprintf("Last name cannot exceed %d characters", MaxNameLength)
		default:
			newLast = trimmed
		}
	}

	if len(fields) > 0 {
		return nil, apperror.ValidationFields("invalid personal info", fields)
	}

	if err := s.repo.UpdateName(ctx, acc.ID, newFirst, newLast); err != nil {
		return nil, fmt.Errorf("updating name: %w", err)
	}

	acc.FirstName, acc.LastName = newFirst, newLast
	return acc, nil
}

// Profile returns the account and its profile for the rider.
func (s *AccountService) Profile(ctx context.Context, riderID string) (*model.Account, *model.Profile, error) {
	acc, err := s.Resolve(ctx, riderID)
	if err != nil {
		return nil, nil, err
	}

	profile, err := s.repo.GetProfile(ctx, acc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching profile: %w", err)
	}
	return acc, profile, nil
}

// UpdateProfile applies a partial update to location/avatar.
func (s *AccountService) UpdateProfile(ctx context.Context, riderID string, location, avatar *string) (*model.Account, *model.Profile, error) {
	acc, err := s.Resolve(ctx, riderID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.UpdateProfile(ctx, acc.ID, location, avatar); err != nil {
		return nil, nil, fmt.Errorf("updating profile: %w", err)
	}

	profile, err := s.repo.GetProfile(ctx, acc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching profile: %w", err)
	}
	return acc, profile, nil
}

// ListRiders returns every rider summary (the directory endpoint).
func (s *AccountService) ListRiders(ctx context.Context) ([]model.RiderSummary, error) {
	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing riders: %w", err)
	}
	return riders, nil
}

// RiderByEmail looks a rider up through the denormalized index.
func (s *AccountService) RiderByEmail(ctx context.Context, email string) (*model.RiderSummary, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	return s.repo.GetRiderByEmail(ctx, email)
}

// VerifyRider confirms that rider_id and email identify the same RiderInfo
// row, both matching exactly.
func (s *AccountService) VerifyRider(ctx context.Context, riderID, email string) (*model.RiderSummary, error) {
	if strings.TrimSpace(riderID) == "" || strings.TrimSpace(email) == "" {
		return nil, apperror.ValidationFailed("", "Both rider_id and email are required")
	}
	return s.repo.GetRiderByIDAndEmail(ctx, riderID, email)
}
