package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
)

// Ticker marks every open trade of one ledger to market
type Ticker interface {
	Mode() domain.Mode
	MarkToMarketAll(ctx context.Context) error
}

// RankRefresher writes league standings back onto portfolios
type RankRefresher interface {
	RefreshCompetitionRanks(ctx context.Context) error
}

// SchedulerConfig holds the cron expressions (with seconds) of each job
type SchedulerConfig struct {
	TickSchedule string
	RankSchedule string
	TickTimeout  time.Duration
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron    *cron.Cron
	cfg     SchedulerConfig
	tickers []Ticker
	ranks   RankRefresher
	logger  *zap.Logger
}

// NewScheduler creates a new scheduler. ranks may be nil.
func NewScheduler(cfg SchedulerConfig, tickers []Ticker, ranks RankRefresher, logger *zap.Logger) *Scheduler {
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = 8 * time.Second
	}
	cl := cronLogger{l: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		cfg:     cfg,
		tickers: tickers,
		ranks:   ranks,
		logger:  logger,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.TickSchedule, s.tick); err != nil {
		return fmt.Errorf("failed to add tick job: %w", err)
	}

	if s.ranks != nil && s.cfg.RankSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.RankSchedule, s.refreshRanks); err != nil {
			return fmt.Errorf("failed to add rank job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("tick", s.cfg.TickSchedule),
		zap.String("ranks", s.cfg.RankSchedule),
		zap.Int("ledgers", len(s.tickers)),
	)
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunNow runs one tick over every ledger synchronously
func (s *Scheduler) RunNow(ctx context.Context) error {
	var firstErr error
	for _, t := range s.tickers {
		if err := t.MarkToMarketAll(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s tick: %w", t.Mode(), err)
		}
	}
	return firstErr
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TickTimeout)
	defer cancel()

	for _, t := range s.tickers {
		if err := t.MarkToMarketAll(ctx); err != nil {
			s.logger.Error("scheduled tick failed", zap.String("mode", string(t.Mode())), zap.Error(err))
		}
	}
}

func (s *Scheduler) refreshRanks() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.ranks.RefreshCompetitionRanks(ctx); err != nil {
		s.logger.Error("competition rank refresh failed", zap.Error(err))
	}
}

// cronLogger routes cron's own logging into zap
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
