package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradeledger/configs"
	"tradeledger/internal/journal"
)

func testOptions() simOptions {
	return simOptions{
		Seed:      42,
		Steps:     120,
		Interval:  10 * time.Second,
		OpenEvery: 5,
		Balance:   decimal.NewFromInt(100000),
		Leverage:  decimal.NewFromInt(10),
	}
}

func TestSimulate_ClosesEverythingAndBalances(t *testing.T) {
	catalog, err := configs.LoadInstruments("")
	require.NoError(t, err)

	res, err := simulate(context.Background(), catalog, testOptions(), zap.NewNop())
	require.NoError(t, err)

	p := res.Portfolio
	assert.Equal(t, 24, res.Opened+res.Rejected)
	assert.Equal(t, 0, p.PositionCount)
	assert.True(t, p.UnrealizedPnL.IsZero())
	assert.True(t, p.CashBalance.Equal(p.TotalEquity), "flat book: cash %s equity %s", p.CashBalance, p.TotalEquity)
	assert.Equal(t, res.Opened, p.TotalTrades)
	assert.LessOrEqual(t, p.WinningTrades+p.LosingTrades, p.TotalTrades)
}

func TestSimulate_WritesJournal(t *testing.T) {
	catalog, err := configs.LoadInstruments("")
	require.NoError(t, err)

	opts := testOptions()
	opts.Journal = filepath.Join(t.TempDir(), "sim.sqlite")
	res, err := simulate(context.Background(), catalog, opts, zap.NewNop())
	require.NoError(t, err)

	j, err := journal.NewSQLite(opts.Journal)
	require.NoError(t, err)
	defer j.Close()

	s, err := j.Summarize(context.Background(), res.UserID)
	require.NoError(t, err)
	assert.Equal(t, res.Opened, s.Settlements)
	assert.True(t, s.NetPnL.Equal(res.Portfolio.RealizedPnL), "journal %s portfolio %s", s.NetPnL, res.Portfolio.RealizedPnL)
}

func TestSimulate_RejectsBadOptions(t *testing.T) {
	opts := testOptions()
	opts.Steps = 0
	_, err := simulate(context.Background(), nil, opts, zap.NewNop())
	assert.Error(t, err)
}

func TestPrintSimResult(t *testing.T) {
	catalog, err := configs.LoadInstruments("")
	require.NoError(t, err)
	res, err := simulate(context.Background(), catalog, testOptions(), zap.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	printSimResult(&buf, res)
	assert.Contains(t, buf.String(), "final equity:")
	assert.Contains(t, buf.String(), res.UserID.String())
}
