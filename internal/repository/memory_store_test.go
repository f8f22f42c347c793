package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTrade(userID uuid.UUID, status string, closed bool) *domain.Trade {
	return &domain.Trade{
		ID:           uuid.New(),
		UserID:       userID,
		Symbol:       "EURUSD",
		PositionType: domain.PositionLong,
		OrderType:    domain.OrderMarket,
		OrderStatus:  status,
		Units:        decimal.NewFromInt(1000),
		EntryPrice:   decimal.RequireFromString("1.1"),
		IsClosed:     closed,
		CreatedAt:    t0,
	}
}

func TestMemoryStore_PortfolioLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := store.Repositories().Portfolios
	userID := uuid.New()

	_, err := repo.GetByUserID(ctx, userID)
	assert.ErrorIs(t, err, domain.ErrPortfolioNotFound)

	p := domain.NewPortfolio(userID, decimal.NewFromInt(100000), nil, t0)
	require.NoError(t, repo.Create(ctx, p))
	assert.ErrorIs(t, repo.Create(ctx, p), domain.ErrPortfolioExists)

	got, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	got.CashBalance = decimal.NewFromInt(5)

	again, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, again.CashBalance.Equal(decimal.NewFromInt(100000)), "returned portfolios are copies")

	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, int64(1), got.Version)

	assert.ErrorIs(t, repo.Update(ctx, again), domain.ErrConcurrentUpdate)
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	userID := uuid.New()
	require.NoError(t, store.Repositories().Portfolios.Create(ctx, domain.NewPortfolio(userID, decimal.NewFromInt(1000), nil, t0)))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := repos.Portfolios.GetForUpdate(ctx, userID)
		require.NoError(t, err)
		p.Debit(decimal.NewFromInt(400))
		require.NoError(t, repos.Portfolios.Update(ctx, p))
		require.NoError(t, repos.Trades.Save(ctx, newTrade(userID, domain.StatusFilled, false)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := store.Repositories().Portfolios.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, p.CashBalance.Equal(decimal.NewFromInt(1000)))
	assert.Zero(t, p.Version)

	trades, err := store.Repositories().Trades.GetByUserID(ctx, userID, domain.FilterAll)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestMemoryStore_TradeQueries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := store.Repositories().Trades
	alice, bob := uuid.New(), uuid.New()

	first := newTrade(alice, domain.StatusFilled, false)
	second := newTrade(alice, domain.StatusFilled, true)
	pending := newTrade(alice, domain.StatusPending, false)
	other := newTrade(bob, domain.StatusFilled, true)
	for _, tr := range []*domain.Trade{first, second, pending, other} {
		require.NoError(t, repo.Save(ctx, tr))
	}

	all, err := repo.GetByUserID(ctx, alice, domain.FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, pending.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[2].ID)

	closed, err := repo.GetByUserID(ctx, alice, domain.FilterClosed)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, second.ID, closed[0].ID)

	open, err := repo.GetOpenByUserID(ctx, alice)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)

	users, err := repo.GetUserIDsWithOpenTrades(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice}, users)

	first.IsClosed = true
	require.NoError(t, repo.Update(ctx, first))
	users, err = repo.GetUserIDsWithOpenTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.ErrorIs(t, repo.Update(ctx, newTrade(alice, domain.StatusFilled, false)), domain.ErrTradeNotFound)

	require.NoError(t, repo.DeleteByUserID(ctx, alice))
	all, err = repo.GetByUserID(ctx, alice, domain.FilterAll)
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = repo.GetByID(ctx, other.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_LeaderboardAndCompetition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := store.Repositories().Portfolios
	league := uuid.New()

	winner := domain.NewPortfolio(uuid.New(), decimal.NewFromInt(1000), &league, t0)
	winner.TotalEquity = decimal.NewFromInt(1200)
	loser := domain.NewPortfolio(uuid.New(), decimal.NewFromInt(1000), &league, t0.Add(time.Second))
	loser.TotalEquity = decimal.NewFromInt(800)
	outsider := domain.NewPortfolio(uuid.New(), decimal.NewFromInt(1000), nil, t0)
	for _, p := range []*domain.Portfolio{winner, loser, outsider} {
		require.NoError(t, repo.Create(ctx, p))
	}
	store.SetUsername(winner.UserID, "ana")

	entries, err := store.GetLeaderboard(ctx, league)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, winner.UserID, entries[0].UserID)
	assert.Equal(t, "ana", entries[0].Username)
	assert.Equal(t, 2, entries[1].Rank)

	ids, err := repo.ListLeagueIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{league}, ids)

	require.NoError(t, repo.UpdateCompetition(ctx, loser.UserID, 2, "-20"))
	got, err := repo.GetByUserID(ctx, loser.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.CompetitionRank)
	assert.Equal(t, 2, *got.CompetitionRank)
	assert.True(t, got.CompetitionScore.Equal(decimal.NewFromInt(-20)))

	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.GetByUserID(ctx, loser.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, *got.CompetitionRank)
}
