package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MutualFund is a portfolio holding owned by exactly one account.
// Both amounts are 2-dp decimals.
type MutualFund struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"-"`
	Name           string          `json:"name"`
	FundType       string          `json:"fund_type"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PortfolioSummary aggregates invested and current value across all funds of
// an account. GainLossPercentage is rounded to 2 decimal places and defined
// as 0 when nothing is invested.
type PortfolioSummary struct {
	TotalInvested           decimal.Decimal `json:"total_invested"`
	TotalCurrentValue       decimal.Decimal `json:"total_current_value"`
	TotalGainLoss           decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercentage decimal.Decimal `json:"total_gain_loss_percentage"`
}
