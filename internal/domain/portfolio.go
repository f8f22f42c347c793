package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio is the single paper-trading account owned by a user.
type Portfolio struct {
	UserID          uuid.UUID       `json:"user_id"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	CashBalance     decimal.Decimal `json:"cash_balance"`
	TotalEquity     decimal.Decimal `json:"total_equity"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL   decimal.Decimal `json:"unrealized_pnl"`

	TotalTrades     int             `json:"total_trades"`
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	WinRate         decimal.Decimal `json:"win_rate"`
	LargestWin      decimal.Decimal `json:"largest_win"`
	LargestLoss     decimal.Decimal `json:"largest_loss"`
	PositionCount   int             `json:"position_count"`
	MaxPositionSize decimal.Decimal `json:"max_position_size"`
	RiskScore       decimal.Decimal `json:"risk_score"`

	LeagueID         *uuid.UUID       `json:"league_id,omitempty"`
	CompetitionRank  *int             `json:"competition_rank,omitempty"`
	CompetitionScore *decimal.Decimal `json:"competition_score,omitempty"`
	EntryFeePaid     bool             `json:"entry_fee_paid"`
	PrizeEligibility bool             `json:"prize_eligibility"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPortfolio creates a portfolio funded with startingBalance.
func NewPortfolio(userID uuid.UUID, startingBalance decimal.Decimal, leagueID *uuid.UUID, now time.Time) *Portfolio {
	return &Portfolio{
		UserID:          userID,
		StartingBalance: startingBalance,
		CashBalance:     startingBalance,
		TotalEquity:     startingBalance,
		LeagueID:        leagueID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Debit removes amount from cash.
func (p *Portfolio) Debit(amount decimal.Decimal) {
	p.CashBalance = p.CashBalance.Sub(amount)
}

// Credit adds amount to cash.
func (p *Portfolio) Credit(amount decimal.Decimal) {
	p.CashBalance = p.CashBalance.Add(amount)
}

// ReturnPercentage is the equity change relative to the starting balance.
func (p *Portfolio) ReturnPercentage() decimal.Decimal {
	if !p.StartingBalance.IsPositive() {
		return decimal.Zero
	}
	return p.TotalEquity.Sub(p.StartingBalance).Div(p.StartingBalance).Mul(hundred)
}

// Reset restores the portfolio to its starting balance and clears statistics.
func (p *Portfolio) Reset(now time.Time) {
	fresh := NewPortfolio(p.UserID, p.StartingBalance, p.LeagueID, p.CreatedAt)
	fresh.Version = p.Version
	fresh.EntryFeePaid = p.EntryFeePaid
	fresh.PrizeEligibility = p.PrizeEligibility
	fresh.UpdatedAt = now
	*p = *fresh
}
