package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sakif/expense-tracker/internal/apperror"
	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/repository"
)

// PortfolioService manages mutual fund holdings and the gain/loss summary.
type PortfolioService struct {
	accounts repository.AccountRepository
	funds    repository.FundRepository
	logger   *slog.Logger
}

// NewPortfolioService wires the portfolio dependencies.
func NewPortfolioService(accounts repository.AccountRepository, funds repository.FundRepository, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{accounts: accounts, funds: funds, logger: logger}
}

func (s *PortfolioService) resolve(ctx context.Context, riderID string) (*model.Account, error) {
	riderID = strings.TrimSpace(riderID)
	if riderID == "" {
		return nil, apperror.ValidationFailed("rider_id", "rider_id is required")
	}
	return s.accounts.GetByRiderID(ctx, riderID)
}

// AddFund records a new holding. Amounts are normalized to two decimal
// places; negative amounts are rejected.
func (s *PortfolioService) AddFund(ctx context.Context, riderID, name, fundType string, invested, current decimal.Decimal) (*model.MutualFund, error) {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if invested.IsNegative() || current.IsNegative() {
		return nil, apperror.ValidationFailed("invested_amount", "Amounts cannot be negative")
	}

	fund := &model.MutualFund{
		AccountID:      acc.ID,
		Name:           name,
		FundType:       strings.TrimSpace(fundType),
		InvestedAmount: invested.Round(2),
		CurrentValue:   current.Round(2),
	}
	if err := s.funds.CreateFund(ctx, fund); err != nil {
		return nil, fmt.Errorf("creating fund: %w", err)
	}

	s.logger.Info("fund added",
		slog.String("accountID", acc.ID),
		slog.String("fundID", fund.ID),
		slog.String("name", fund.Name),
	)
	return fund, nil
}

// ListFunds returns the rider's holdings, newest first.
func (s *PortfolioService) ListFunds(ctx context.Context, riderID string) ([]model.MutualFund, error) {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	funds, err := s.funds.ListFunds(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("listing funds: %w", err)
	}
	return funds, nil
}

// UpdateFund applies a partial update to a holding the rider owns. nil
// fields are left unchanged. A fund belonging to another account is
// indistinguishable from a missing one.
func (s *PortfolioService) UpdateFund(ctx context.Context, riderID, fundID string, name, fundType *string, invested, current *decimal.Decimal) (*model.MutualFund, error) {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return nil, err
	}

	fund, err := s.funds.GetFund(ctx, fundID, acc.ID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperror.ValidationFailed("name", "name cannot be empty")
		}
		fund.Name = trimmed
	}
	if fundType != nil {
		fund.FundType = strings.TrimSpace(*fundType)
	}
	if invested != nil {
		if invested.IsNegative() {
			return nil, apperror.ValidationFailed("invested_amount", "Amounts cannot be negative")
		}
		fund.InvestedAmount = invested.Round(2)
	}
	if current != nil {
		if current.IsNegative() {
			return nil, apperror.ValidationFailed("current_value", "Amounts cannot be negative")
		}
		fund.CurrentValue = current.Round(2)
	}

	if err := s.funds.UpdateFund(ctx, fund); err != nil {
		return nil, fmt.Errorf("updating fund: %w", err)
	}
	return fund, nil
}

// DeleteFund removes a holding the rider owns.
func (s *PortfolioService) DeleteFund(ctx context.Context, riderID, fundID string) error {
	acc, err := s.resolve(ctx, riderID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(fundID) == "" {
		return apperror.ValidationFailed("fund_id", "fund_id is required")
	}

	if err := s.funds.DeleteFund(ctx, fundID, acc.ID); err != nil {
		return err
	}

	s.logger.Info("fund deleted",
		slog.String("accountID", acc.ID),
		slog.String("fundID", fundID),
	)
	return nil
}

// Summary aggregates the rider's holdings. The gain percentage is
// gain/invested*100 rounded to two decimals, and zero when nothing is
// invested.
func (s *PortfolioService) Summary(ctx context.Context, riderID string) (*model.PortfolioSummary, error) {
	funds, err := s.ListFunds(ctx, riderID)
	if err != nil {
		return nil, err
	}

	var invested, current decimal.Decimal
	for _, f := range funds {
		invested = invested.Add(f.InvestedAmount)
		current = current.Add(f.CurrentValue)
	}

	gain := current.Sub(invested)
	var pct decimal.Decimal
	if !invested.IsZero() {
		pct = gain.Div(invested).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &model.PortfolioSummary{
		TotalInvested:           invested,
		TotalCurrentValue:       current,
		TotalGainLoss:           gain,
		TotalGainLossPercentage: pct,
	}, nil
}
