package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain"
	"tradeledger/internal/repository"
)

func seedLeague(t *testing.T, store *repository.MemoryStore, league uuid.UUID, equities ...string) []uuid.UUID {
	t.Helper()
	ctx := context.Background()
	ids := make([]uuid.UUID, 0, len(equities))
	for i, eq := range equities {
		p := domain.NewPortfolio(uuid.New(), d("1000"), &league, start.Add(time.Duration(i)*time.Second))
		p.TotalEquity = d(eq)
		require.NoError(t, store.Repositories().Portfolios.Create(ctx, p))
		ids = append(ids, p.UserID)
	}
	return ids
}

func TestLeaderboardService_RefreshCompetitionRanks(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	league := uuid.New()
	ids := seedLeague(t, store, league, "900", "1500", "1100")

	svc := NewLeaderboardService(store, store.Repositories().Portfolios, nil, nil)
	require.NoError(t, svc.RefreshCompetitionRanks(ctx))

	wantRank := map[uuid.UUID]int{ids[1]: 1, ids[2]: 2, ids[0]: 3}
	wantScore := map[uuid.UUID]string{ids[1]: "50", ids[2]: "10", ids[0]: "-10"}
	for _, id := range ids {
		p, err := store.Repositories().Portfolios.GetByUserID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, p.CompetitionRank)
		assert.Equal(t, wantRank[id], *p.CompetitionRank)
		assert.True(t, d(wantScore[id]).Equal(*p.CompetitionScore), p.CompetitionScore.String())
	}
}

func TestLeaderboardService_GetLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	league := uuid.New()
	ids := seedLeague(t, store, league, "1000", "1200")
	store.SetUsername(ids[1], "bea")

	svc := NewLeaderboardService(store, store.Repositories().Portfolios, nil, nil)
	entries, err := svc.GetLeaderboard(ctx, league)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bea", entries[0].Username)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, league, entries[0].LeagueID)

	empty, err := svc.GetLeaderboard(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestLeaderboardService_RedisDownFallsBackToRepository(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	league := uuid.New()
	seedLeague(t, store, league, "1000")

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	svc := NewLeaderboardService(store, store.Repositories().Portfolios, rdb, nil)
	entries, err := svc.GetLeaderboard(ctx, league)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
