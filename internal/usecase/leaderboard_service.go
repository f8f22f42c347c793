package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
)

// DefaultLeaderboardTTL is how long a cached league standing is served
const DefaultLeaderboardTTL = 30 * time.Second

// LeaderboardServiceImpl reads league standings and writes competition ranks
// back onto portfolios. The Redis cache is optional.
type LeaderboardServiceImpl struct {
	boards     domain.LeaderboardRepository
	portfolios domain.PortfolioRepository
	rdb        *redis.Client
	ttl        time.Duration
	logger     *zap.Logger
}

var _ domain.LeaderboardService = (*LeaderboardServiceImpl)(nil)

// NewLeaderboardService creates a new LeaderboardService. rdb may be nil.
func NewLeaderboardService(boards domain.LeaderboardRepository, portfolios domain.PortfolioRepository, rdb *redis.Client, logger *zap.Logger) *LeaderboardServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardServiceImpl{
		boards:     boards,
		portfolios: portfolios,
		rdb:        rdb,
		ttl:        DefaultLeaderboardTTL,
		logger:     logger,
	}
}

// GetLeaderboard returns the ranked standings of a league
func (s *LeaderboardServiceImpl) GetLeaderboard(ctx context.Context, leagueID uuid.UUID) ([]domain.LeaderboardEntry, error) {
	if entries, ok := s.cached(ctx, leagueID); ok {
		return entries, nil
	}

	entries, err := s.boards.GetLeaderboard(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	s.store(ctx, leagueID, entries)
	return entries, nil
}

// RefreshCompetitionRanks recomputes every league's standings and stores
// each portfolio's rank and return percentage
func (s *LeaderboardServiceImpl) RefreshCompetitionRanks(ctx context.Context) error {
	leagues, err := s.portfolios.ListLeagueIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list leagues: %w", err)
	}

	var errs []error
	updated := 0
	for _, leagueID := range leagues {
		entries, err := s.boards.GetLeaderboard(ctx, leagueID)
		if err != nil {
			errs = append(errs, fmt.Errorf("league %s: %w", leagueID, err))
			continue
		}
		for _, e := range entries {
			score := e.ReturnPercentage.StringFixed(4)
			if err := s.portfolios.UpdateCompetition(ctx, e.UserID, e.Rank, score); err != nil {
				errs = append(errs, fmt.Errorf("portfolio %s: %w", e.UserID, err))
				continue
			}
			updated++
		}
		s.store(ctx, leagueID, entries)
	}

	s.logger.Debug("competition ranks refreshed",
		zap.Int("leagues", len(leagues)),
		zap.Int("portfolios", updated),
	)
	return errors.Join(errs...)
}

func (s *LeaderboardServiceImpl) cached(ctx context.Context, leagueID uuid.UUID) ([]domain.LeaderboardEntry, bool) {
	if s.rdb == nil {
		return nil, false
	}
	data, err := s.rdb.Get(ctx, leaderboardKey(leagueID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("leaderboard cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *LeaderboardServiceImpl) store(ctx context.Context, leagueID uuid.UUID, entries []domain.LeaderboardEntry) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, leaderboardKey(leagueID), data, s.ttl).Err(); err != nil {
		s.logger.Debug("leaderboard cache write failed", zap.Error(err))
	}
}

func leaderboardKey(leagueID uuid.UUID) string { return "leaderboard:" + leagueID.String() }
