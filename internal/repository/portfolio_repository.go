package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tradeledger/internal/domain"
)

// PortfolioRepositoryImpl implements the PortfolioRepository interface
type PortfolioRepositoryImpl struct {
	db Querier
}

// NewPortfolioRepository creates a new PortfolioRepository
func NewPortfolioRepository(db Querier) domain.PortfolioRepository {
	return &PortfolioRepositoryImpl{db: db}
}

const portfolioColumns = `
	user_id, starting_balance::TEXT, cash_balance::TEXT, total_equity::TEXT,
	realized_pnl::TEXT, unrealized_pnl::TEXT,
	total_trades, winning_trades, losing_trades, win_rate::TEXT,
	largest_win::TEXT, largest_loss::TEXT, position_count,
	max_position_size::TEXT, risk_score::TEXT,
	league_id, competition_rank, competition_score::TEXT,
	entry_fee_paid, prize_eligibility, version, created_at, updated_at`

// Create inserts a new portfolio
func (r *PortfolioRepositoryImpl) Create(ctx context.Context, p *domain.Portfolio) error {
	query := `
		INSERT INTO portfolios (
			user_id, starting_balance, cash_balance, total_equity,
			realized_pnl, unrealized_pnl, league_id,
			entry_fee_paid, prize_eligibility, version, created_at, updated_at
		) VALUES (
			$1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC,
			$7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (user_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		p.UserID,
		p.StartingBalance.String(),
		p.CashBalance.String(),
		p.TotalEquity.String(),
		p.RealizedPnL.String(),
		p.UnrealizedPnL.String(),
		p.LeagueID,
		p.EntryFeePaid,
		p.PrizeEligibility,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPortfolioExists
	}

	return nil
}

// GetByUserID retrieves a user's portfolio
func (r *PortfolioRepositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

// GetForUpdate retrieves a portfolio and locks its row
func (r *PortfolioRepositoryImpl) GetForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE user_id = $1 FOR UPDATE`
	return r.getOne(ctx, query, userID)
}

func (r *PortfolioRepositoryImpl) getOne(ctx context.Context, query string, userID uuid.UUID) (*domain.Portfolio, error) {
	p, err := scanPortfolio(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

// Update saves balances and statistics with an optimistic version check
func (r *PortfolioRepositoryImpl) Update(ctx context.Context, p *domain.Portfolio) error {
	query := `
		UPDATE portfolios SET
			cash_balance = $2::NUMERIC,
			total_equity = $3::NUMERIC,
			realized_pnl = $4::NUMERIC,
			unrealized_pnl = $5::NUMERIC,
			total_trades = $6,
			winning_trades = $7,
			losing_trades = $8,
			win_rate = $9::NUMERIC,
			largest_win = $10::NUMERIC,
			largest_loss = $11::NUMERIC,
			position_count = $12,
			max_position_size = $13::NUMERIC,
			risk_score = $14::NUMERIC,
			starting_balance = $15::NUMERIC,
			updated_at = $16,
			version = version + 1
		WHERE user_id = $1 AND version = $17
	`

	tag, err := r.db.Exec(ctx, query,
		p.UserID,
		p.CashBalance.String(),
		p.TotalEquity.String(),
		p.RealizedPnL.String(),
		p.UnrealizedPnL.String(),
		p.TotalTrades,
		p.WinningTrades,
		p.LosingTrades,
		p.WinRate.String(),
		p.LargestWin.String(),
		p.LargestLoss.String(),
		p.PositionCount,
		p.MaxPositionSize.String(),
		p.RiskScore.String(),
		p.StartingBalance.String(),
		p.UpdatedAt,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentUpdate
	}

	p.Version++
	return nil
}

// ListByLeague retrieves every portfolio in a league
func (r *PortfolioRepositoryImpl) ListByLeague(ctx context.Context, leagueID uuid.UUID) ([]*domain.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE league_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios by league: %w", err)
	}
	defer rows.Close()

	var portfolios []*domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// ListLeagueIDs returns the distinct leagues that have portfolios
func (r *PortfolioRepositoryImpl) ListLeagueIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT league_id FROM portfolios WHERE league_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query league ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan league id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateCompetition writes a portfolio's league rank and score
func (r *PortfolioRepositoryImpl) UpdateCompetition(ctx context.Context, userID uuid.UUID, rank int, score string) error {
	query := `
		UPDATE portfolios
		SET competition_rank = $2, competition_score = $3::NUMERIC
		WHERE user_id = $1
	`

	if _, err := r.db.Exec(ctx, query, userID, rank, score); err != nil {
		return fmt.Errorf("failed to update competition rank: %w", err)
	}
	return nil
}

func scanPortfolio(row rowScanner) (*domain.Portfolio, error) {
	p := &domain.Portfolio{}
	var starting, cash, equity, realized, unrealized string
	var winRate, largestWin, largestLoss, maxPosition, risk string
	var score *string

	err := row.Scan(
		&p.UserID,
		&starting, &cash, &equity,
		&realized, &unrealized,
		&p.TotalTrades, &p.WinningTrades, &p.LosingTrades, &winRate,
		&largestWin, &largestLoss, &p.PositionCount,
		&maxPosition, &risk,
		&p.LeagueID, &p.CompetitionRank, &score,
		&p.EntryFeePaid, &p.PrizeEligibility, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.StartingBalance, err = parseDecimal("starting_balance", starting); err != nil {
		return nil, err
	}
	if p.CashBalance, err = parseDecimal("cash_balance", cash); err != nil {
		return nil, err
	}
	if p.TotalEquity, err = parseDecimal("total_equity", equity); err != nil {
		return nil, err
	}
	if p.RealizedPnL, err = parseDecimal("realized_pnl", realized); err != nil {
		return nil, err
	}
	if p.UnrealizedPnL, err = parseDecimal("unrealized_pnl", unrealized); err != nil {
		return nil, err
	}
	if p.WinRate, err = parseDecimal("win_rate", winRate); err != nil {
		return nil, err
	}
	if p.LargestWin, err = parseDecimal("largest_win", largestWin); err != nil {
		return nil, err
	}
	if p.LargestLoss, err = parseDecimal("largest_loss", largestLoss); err != nil {
		return nil, err
	}
	if p.MaxPositionSize, err = parseDecimal("max_position_size", maxPosition); err != nil {
		return nil, err
	}
	if p.RiskScore, err = parseDecimal("risk_score", risk); err != nil {
		return nil, err
	}
	if p.CompetitionScore, err = parseNullableDecimal("competition_score", score); err != nil {
		return nil, err
	}

	return p, nil
}
