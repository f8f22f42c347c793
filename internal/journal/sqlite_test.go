package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func settlement(userID uuid.UUID, net string, closedAt time.Time) domain.SettlementRecord {
	return domain.SettlementRecord{
		TradeID:      uuid.New(),
		UserID:       userID,
		Symbol:       "AUDUSD",
		PositionType: domain.PositionLong,
		Units:        decimal.NewFromInt(100000),
		EntryPrice:   decimal.RequireFromString("0.65"),
		ExitPrice:    decimal.RequireFromString("0.66"),
		GrossPnL:     decimal.NewFromInt(1000),
		Commission:   decimal.NewFromInt(131),
		NetPnL:       decimal.RequireFromString(net),
		Reason:       domain.ReasonManualClose,
		OpenedAt:     closedAt.Add(-time.Hour),
		ClosedAt:     closedAt,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('settlements','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())
	assert.True(t, found["settlements"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordSettlement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	userID := uuid.New()
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	rec := settlement(userID, "934", at)
	require.NoError(t, j.RecordSettlement(ctx, rec))
	require.NoError(t, j.RecordSettlement(ctx, rec), "duplicates are ignored")
	require.NoError(t, j.RecordSettlement(ctx, settlement(uuid.New(), "5", at)))

	got, err := j.ListSettlements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.TradeID, got[0].TradeID)
	assert.Equal(t, "AUDUSD", got[0].Symbol)
	assert.True(t, got[0].NetPnL.Equal(decimal.NewFromInt(934)))
	assert.True(t, got[0].EntryPrice.Equal(decimal.RequireFromString("0.65")))
	assert.True(t, got[0].ClosedAt.Equal(at))
}

func TestSQLiteSummarize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)
	userID := uuid.New()
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	empty, err := j.Summarize(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, empty.Settlements)
	assert.True(t, empty.LastEquity.IsZero())

	require.NoError(t, j.RecordSettlement(ctx, settlement(userID, "934", at)))
	require.NoError(t, j.RecordSettlement(ctx, settlement(userID, "-200.5", at.Add(time.Minute))))
	for i, eq := range []string{"100000", "100869", "100668.5"} {
		require.NoError(t, j.RecordEquity(ctx, domain.EquitySnapshot{
			UserID:        userID,
			At:            at.Add(time.Duration(i) * time.Minute),
			Cash:          decimal.RequireFromString(eq),
			Equity:        decimal.RequireFromString(eq),
			RealizedPnL:   decimal.Zero,
			UnrealizedPnL: decimal.Zero,
		}))
	}

	s, err := j.Summarize(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Settlements)
	assert.Equal(t, 1, s.Wins)
	assert.True(t, s.NetPnL.Equal(decimal.RequireFromString("733.5")), s.NetPnL.String())
	assert.True(t, s.Commission.Equal(decimal.NewFromInt(262)))
	assert.Equal(t, 3, s.Snapshots)
	assert.True(t, s.LastEquity.Equal(decimal.RequireFromString("100668.5")))
	assert.True(t, s.LastAt.Equal(at.Add(2*time.Minute)))
}
