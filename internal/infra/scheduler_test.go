package infra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
)

type countingTicker struct {
	mode  domain.Mode
	calls atomic.Int32
	err   error
}

func (c *countingTicker) Mode() domain.Mode { return c.mode }

func (c *countingTicker) MarkToMarketAll(context.Context) error {
	c.calls.Add(1)
	return c.err
}

type countingRanks struct{ calls atomic.Int32 }

func (c *countingRanks) RefreshCompetitionRanks(context.Context) error {
	c.calls.Add(1)
	return nil
}

func TestScheduler_RunNow(t *testing.T) {
	live := &countingTicker{mode: domain.ModeLive, err: errors.New("db down")}
	demo := &countingTicker{mode: domain.ModeDemo}
	s := NewScheduler(SchedulerConfig{TickSchedule: "*/10 * * * * *"}, []Ticker{live, demo}, nil, zap.NewNop())

	err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live tick")
	assert.Equal(t, int32(1), live.calls.Load())
	assert.Equal(t, int32(1), demo.calls.Load(), "a failing ledger does not stop the others")
}

func TestScheduler_RunsJobs(t *testing.T) {
	demo := &countingTicker{mode: domain.ModeDemo}
	ranks := &countingRanks{}
	s := NewScheduler(SchedulerConfig{
		TickSchedule: "* * * * * *",
		RankSchedule: "* * * * * *",
		TickTimeout:  time.Second,
	}, []Ticker{demo}, ranks, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return demo.calls.Load() > 0 && ranks.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(SchedulerConfig{TickSchedule: "every ten seconds"}, nil, nil, zap.NewNop())
	assert.Error(t, s.Start())
}
