package domain

import (
	"context"

	"github.com/google/uuid"
)

// PortfolioRepository defines the interface for portfolio data operations
type PortfolioRepository interface {
	// Create inserts a new portfolio. Returns ErrPortfolioExists on conflict.
	Create(ctx context.Context, portfolio *Portfolio) error

	// GetByUserID retrieves a user's portfolio
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Portfolio, error)

	// GetForUpdate retrieves a portfolio and locks it until the surrounding
	// transaction ends
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*Portfolio, error)

	// Update saves balances and statistics. The stored version must match
	// portfolio.Version, otherwise ErrConcurrentUpdate is returned. On success
	// portfolio.Version is incremented.
	Update(ctx context.Context, portfolio *Portfolio) error

	// ListByLeague retrieves every portfolio in a league
	ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]*Portfolio, error)

	// ListLeagueIDs returns the distinct leagues that have portfolios
	ListLeagueIDs(ctx context.Context) ([]uuid.UUID, error)

	// UpdateCompetition writes a portfolio's league rank and score
	UpdateCompetition(ctx context.Context, userID uuid.UUID, rank int, score string) error
}

// TradeRepository defines the interface for trade data operations
type TradeRepository interface {
	// Save creates a new trade
	Save(ctx context.Context, trade *Trade) error

	// GetByID retrieves a trade by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Trade, error)

	// GetByUserID retrieves a user's trades, newest first
	GetByUserID(ctx context.Context, userID uuid.UUID, filter TradeFilter) ([]*Trade, error)

	// GetOpenByUserID retrieves a user's filled, unclosed trades
	GetOpenByUserID(ctx context.Context, userID uuid.UUID) ([]*Trade, error)

	// GetUserIDsWithOpenTrades lists the users that currently hold positions
	GetUserIDsWithOpenTrades(ctx context.Context) ([]uuid.UUID, error)

	// Update saves price, P&L and settlement fields of a trade
	Update(ctx context.Context, trade *Trade) error

	// DeleteByUserID removes every trade of a user
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// LeaderboardRepository reads ranked league standings
type LeaderboardRepository interface {
	GetLeaderboard(ctx context.Context, leagueID uuid.UUID) ([]LeaderboardEntry, error)
}

// Repositories bundles the repositories a unit of work operates on.
type Repositories struct {
	Portfolios PortfolioRepository
	Trades     TradeRepository
}

// Ledger is the persistent store of portfolios and trades.
type Ledger interface {
	// Repositories returns repositories that run outside any transaction.
	Repositories() Repositories

	// WithinTx runs fn atomically. If fn returns an error nothing it wrote is kept.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
