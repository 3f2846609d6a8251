package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/apperror"
	"github.com/sakif/expense-tracker/internal/model"
)

// mockAccountRepo is an in-memory AccountRepository. Rider IDs are handed
// out sequentially so tests can predict them.
type mockAccountRepo struct {
	accounts map[string]*model.Account
	profiles map[string]*model.Profile // keyed by account ID
	riders   map[string]*model.RiderInfo
	seq      int
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{
		accounts: map[string]*model.Account{},
		profiles: map[string]*model.Profile{},
		riders:   map[string]*model.RiderInfo{},
	}
}

func (m *mockAccountRepo) Create(_ context.Context, acc *model.Account) error {
	for _, existing := range m.accounts {
		if existing.Username == acc.Username {
			return apperror.Conflict("username", "Username already exists. Please try another.")
		}
	}
	m.seq++
	acc.ID = fmt.Sprintf("acc%d", m.seq)
	acc.RiderID = fmt.Sprintf("%08d", m.seq)
	acc.DateJoined = time.Now().UTC().Add(time.Duration(m.seq) * time.Millisecond)
	cp := *acc
	m.accounts[acc.ID] = &cp
	m.profiles[acc.ID] = &model.Profile{
		ID:        "prof" + acc.ID,
		AccountID: acc.ID,
		RiderID:   acc.RiderID,
		CreatedAt: acc.DateJoined,
	}
	m.riders[acc.ID] = &model.RiderInfo{
		ID:           "ri" + acc.ID,
		AccountID:    acc.ID,
		RiderID:      acc.RiderID,
		Email:        acc.Email,
		Username:     acc.Username,
		IsActive:     true,
		CreatedAt:    acc.DateJoined,
		LastActivity: acc.DateJoined,
	}
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id string) (*model.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	cp := *acc
	return &cp, nil
}

func (m *mockAccountRepo) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	var match *model.Account
	for _, acc := range m.accounts {
		if !strings.EqualFold(acc.Email, email) {
			continue
		}
		if match == nil || acc.DateJoined.Before(match.DateJoined) {
			match = acc
		}
	}
	if match == nil {
		return nil, apperror.NotFound("account", email)
	}
	cp := *match
	return &cp, nil
}

func (m *mockAccountRepo) GetByRiderID(_ context.Context, riderID string) (*model.Account, error) {
	for _, acc := range m.accounts {
		if acc.RiderID == riderID {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, apperror.NotFoundMsg("Invalid rider_id")
}

func (m *mockAccountRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	for _, acc := range m.accounts {
		if acc.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountRepo) EmailInUse(_ context.Context, email, excludeAccountID string) (bool, error) {
	for _, acc := range m.accounts {
		if acc.ID != excludeAccountID && strings.EqualFold(acc.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountRepo) UpdateEmail(_ context.Context, accountID, email string) error {
	acc, ok := m.accounts[accountID]
	if !ok {
		return apperror.NotFound("account", accountID)
	}
	acc.Email = email
	m.riders[accountID].Email = email
	return nil
}

func (m *mockAccountRepo) UpdatePassword(_ context.Context, accountID, passwordHash string) error {
	acc, ok := m.accounts[accountID]
	if !ok {
		return apperror.NotFound("account", accountID)
	}
	acc.PasswordHash = passwordHash
	return nil
}

func (m *mockAccountRepo) UpdateName(_ context.Context, accountID, firstName, lastName string) error {
	acc, ok := m.accounts[accountID]
	if !ok {
		return apperror.NotFound("account", accountID)
	}
	acc.FirstName, acc.LastName = firstName, lastName
	return nil
}

func (m *mockAccountRepo) UpdateLastLogin(_ context.Context, accountID string, at time.Time) error {
	acc, ok := m.accounts[accountID]
	if !ok {
		return apperror.NotFound("account", accountID)
	}
	acc.LastLogin = &at
	return nil
}

func (m *mockAccountRepo) Delete(_ context.Context, accountID string) error {
	if _, ok := m.accounts[accountID]; !ok {
		return apperror.NotFound("account", accountID)
	}
	delete(m.accounts, accountID)
	delete(m.profiles, accountID)
	delete(m.riders, accountID)
	return nil
}

func (m *mockAccountRepo) GetProfile(_ context.Context, accountID string) (*model.Profile, error) {
	p, ok := m.profiles[accountID]
	if !ok {
		return nil, apperror.NotFound("profile", accountID)
	}
	cp := *p
	return &cp, nil
}

func (m *mockAccountRepo) UpdateProfile(_ context.Context, accountID string, location, avatar *string) error {
	p, ok := m.profiles[accountID]
	if !ok {
		return apperror.NotFound("profile", accountID)
	}
	if location != nil {
		p.Location = *location
	}
	if avatar != nil {
		p.Avatar = *avatar
	}
	return nil
}

func (m *mockAccountRepo) summary(acc *model.Account) model.RiderSummary {
	ri := m.riders[acc.ID]
	return model.RiderSummary{
		RiderID:        acc.RiderID,
		UserID:         acc.ID,
		Username:       acc.Username,
		Email:          acc.Email,
		FirstName:      acc.FirstName,
		LastName:       acc.LastName,
		DateJoined:     acc.DateJoined,
		LastLogin:      acc.LastLogin,
		Location:       m.profiles[acc.ID].Location,
		IsActive:       ri.IsActive,
		RiderCreatedAt: ri.CreatedAt,
		LastActivity:   ri.LastActivity,
	}
}

func (m *mockAccountRepo) ListRiders(_ context.Context) ([]model.RiderSummary, error) {
	out := make([]model.RiderSummary, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, m.summary(acc))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RiderCreatedAt.After(out[j].RiderCreatedAt)
	})
	return out, nil
}

func (m *mockAccountRepo) GetRiderByEmail(_ context.Context, email string) (*model.RiderSummary, error) {
	for _, acc := range m.accounts {
		if m.riders[acc.ID].Email == email {
			s := m.summary(acc)
			return &s, nil
		}
	}
	return nil, apperror.NotFoundMsg("No rider found with this email")
}

func (m *mockAccountRepo) GetRiderByIDAndEmail(_ context.Context, riderID, email string) (*model.RiderSummary, error) {
	for _, acc := range m.accounts {
		ri := m.riders[acc.ID]
		if ri.RiderID == riderID && ri.Email == email {
			s := m.summary(acc)
			return &s, nil
		}
	}
	return nil, apperror.NotFoundMsg("Rider ID and email do not match")
}

// mockLedgerRepo is an in-memory LedgerRepository.
type mockLedgerRepo struct {
	incomes  []model.Income
	expenses []model.Expense
	seq      int
}

func (m *mockLedgerRepo) CreateIncome(_ context.Context, income *model.Income) error {
	m.seq++
	income.ID = fmt.Sprintf("inc%d", m.seq)
	income.CreatedAt = time.Now().UTC()
	m.incomes = append(m.incomes, *income)
	return nil
}

func (m *mockLedgerRepo) CreateExpense(_ context.Context, expense *model.Expense) error {
	m.seq++
	expense.ID = fmt.Sprintf("exp%d", m.seq)
	expense.CreatedAt = time.Now().UTC()
	m.expenses = append(m.expenses, *expense)
	return nil
}

func (m *mockLedgerRepo) Totals(_ context.Context, accountID string) (decimal.Decimal, decimal.Decimal, error) {
	var income, expense decimal.Decimal
	for _, in := range m.incomes {
		if in.AccountID == accountID {
			income = income.Add(in.Amount)
		}
	}
	for _, ex := range m.expenses {
		if ex.AccountID == accountID {
			expense = expense.Add(ex.Amount)
		}
	}
	return income, expense, nil
}

func (m *mockLedgerRepo) RecentIncomes(_ context.Context, accountID string, limit int) ([]model.Income, error) {
	var out []model.Income
	for _, in := range m.incomes {
		if in.AccountID == accountID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockLedgerRepo) RecentExpenses(_ context.Context, accountID string, limit int) ([]model.Expense, error) {
	var out []model.Expense
	for _, ex := range m.expenses {
		if ex.AccountID == accountID {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockFundRepo is an in-memory FundRepository.
type mockFundRepo struct {
	funds []model.MutualFund
	seq   int
}

func (m *mockFundRepo) CreateFund(_ context.Context, fund *model.MutualFund) error {
	m.seq++
	fund.ID = fmt.Sprintf("fund%d", m.seq)
	fund.CreatedAt = time.Now().UTC()
	m.funds = append(m.funds, *fund)
	return nil
}

func (m *mockFundRepo) ListFunds(_ context.Context, accountID string) ([]model.MutualFund, error) {
	var out []model.MutualFund
	for _, f := range m.funds {
		if f.AccountID == accountID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFundRepo) GetFund(_ context.Context, fundID, accountID string) (*model.MutualFund, error) {
	for _, f := range m.funds {
		if f.ID == fundID && f.AccountID == accountID {
			cp := f
			return &cp, nil
		}
	}
	return nil, apperror.NotFoundMsg("Fund not found")
}

func (m *mockFundRepo) UpdateFund(_ context.Context, fund *model.MutualFund) error {
	for i, f := range m.funds {
		if f.ID == fund.ID && f.AccountID == fund.AccountID {
			m.funds[i] = *fund
			return nil
		}
	}
	return apperror.NotFoundMsg("Fund not found")
}

func (m *mockFundRepo) DeleteFund(_ context.Context, fundID, accountID string) error {
	for i, f := range m.funds {
		if f.ID == fundID && f.AccountID == accountID {
			m.funds = append(m.funds[:i], m.funds[i+1:]...)
			return nil
		}
	}
	return apperror.NotFoundMsg("Fund not found.")
}
