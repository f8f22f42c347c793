package dto

import (
	"github.com/google/uuid"

	"tradeledger/internal/domain"
)

// EnsurePortfolioRequest is the optional body of POST /portfolio
type EnsurePortfolioRequest struct {
	LeagueID *uuid.UUID `json:"league_id,omitempty"`
}

// PortfolioOutput is a portfolio with its derived return
type PortfolioOutput struct {
	*domain.Portfolio
	ReturnPercentage string `json:"return_percentage"`
}

// NewPortfolioOutput wraps a portfolio for the API
func NewPortfolioOutput(p *domain.Portfolio) PortfolioOutput {
	return PortfolioOutput{
		Portfolio:        p,
		ReturnPercentage: p.ReturnPercentage().StringFixed(4),
	}
}
