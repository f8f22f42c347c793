package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradeledger/internal/domain"
)

// LeaderboardRepositoryImpl reads standings through the get_leaderboard function
type LeaderboardRepositoryImpl struct {
	db Querier
}

// NewLeaderboardRepository creates a new LeaderboardRepository
func NewLeaderboardRepository(db Querier) domain.LeaderboardRepository {
	return &LeaderboardRepositoryImpl{db: db}
}

// GetLeaderboard returns the ranked entries of a league
func (r *LeaderboardRepositoryImpl) GetLeaderboard(ctx context.Context, leagueID uuid.UUID) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT user_id, username, total_equity::TEXT, starting_balance::TEXT,
		       return_percentage::TEXT, league_id, can_be_copied, rank
		FROM get_leaderboard($1)
	`

	rows, err := r.db.Query(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		var equity, starting, ret string
		var username *string
		if err := rows.Scan(&e.UserID, &username, &equity, &starting, &ret, &e.LeagueID, &e.CanBeCopied, &e.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		if username != nil {
			e.Username = *username
		}
		if e.TotalEquity, err = parseDecimal("total_equity", equity); err != nil {
			return nil, err
		}
		if e.StartingBalance, err = parseDecimal("starting_balance", starting); err != nil {
			return nil, err
		}
		if e.ReturnPercentage, err = parseDecimal("return_percentage", ret); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return entries, nil
}
