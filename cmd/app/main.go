package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradeledger/configs"
	"tradeledger/internal/adapter/telegram"
	"tradeledger/internal/database"
	delivery "tradeledger/internal/delivery/http"
	"tradeledger/internal/delivery/ops"
	"tradeledger/internal/domain"
	"tradeledger/internal/infra"
	"tradeledger/internal/journal"
	"tradeledger/internal/logger"
	"tradeledger/internal/middleware"
	"tradeledger/internal/repository"
	"tradeledger/internal/service"
	"tradeledger/internal/usecase"
	"tradeledger/internal/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("tradeledger exited with error", zap.Error(err))
	}
}

func run(cfg *configs.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := configs.LoadInstruments(cfg.Trading.InstrumentsPath)
	if err != nil {
		return err
	}
	clock := utils.SystemClock{}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = uuid.NewString()
		zlog.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	// Live ledger: Postgres when configured, otherwise in memory
	var (
		pool       *pgxpool.Pool
		liveLedger domain.Ledger
		liveStore  *repository.MemoryStore
	)
	if cfg.Database.URL != "" {
		pool, err = infra.NewDatabase(ctx, cfg.Database.URL, zlog)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool, zlog); err != nil {
			return err
		}
		liveLedger = repository.NewPostgresLedger(pool)
	} else {
		zlog.Warn("DATABASE_URL not set, live ledger runs in memory")
		liveStore = repository.NewMemoryStore()
		liveLedger = liveStore
	}

	rdb, err := infra.NewRedis(ctx, cfg.Redis.URL, zlog)
	if err != nil {
		zlog.Warn("redis unavailable, quotes and leaderboards are not cached", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Live prices: the market data proxy, or the generator when none is configured
	var livePrices domain.PriceSource
	if cfg.Feed.URL != "" {
		livePrices = service.NewHTTPPriceSource(cfg.Feed.URL, catalog, clock, zlog).WithTimeout(cfg.Feed.Timeout)
	} else {
		zlog.Warn("PRICE_FEED_URL not set, live quotes come from the generator")
		livePrices = service.NewPriceGenerator(cfg.Trading.DemoSeed+1, catalog, clock)
	}
	if rdb != nil {
		livePrices = service.NewCachedPriceSource(livePrices, rdb, cfg.Redis.QuoteTTL, zlog)
	}

	demoGen := service.NewPriceGenerator(cfg.Trading.DemoSeed, catalog, clock)
	demoPrices := service.NewMockPriceSource(demoGen, clock)

	var settlementJournal domain.SettlementJournal
	var journalReader ops.JournalReader
	if cfg.Trading.JournalPath != "" {
		j, err := journal.NewSQLite(cfg.Trading.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		settlementJournal = j
		journalReader = j
		zlog.Info("settlement journal enabled", zap.String("path", cfg.Trading.JournalPath))
	}

	notifier := telegram.NewNotificationService(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if !notifier.Enabled() {
		zlog.Info("telegram notifications disabled")
	}

	hub := delivery.NewWSHub(func(token string) (uuid.UUID, error) {
		return middleware.ParseToken(cfg.Auth.JWTSecret, token)
	}, zlog)

	live := usecase.NewTradingService(usecase.TradingServiceDeps{
		Mode:            domain.ModeLive,
		Ledger:          liveLedger,
		Prices:          livePrices,
		Catalog:         catalog,
		Clock:           clock,
		StartingBalance: cfg.Trading.StartingBalance,
		MaxLeverage:     cfg.Trading.MaxLeverage,
		Events:          hub.Publisher(domain.ModeLive),
		Journal:         settlementJournal,
		Notifier:        notifier,
		Logger:          zlog,
	})
	demo := usecase.NewTradingService(usecase.TradingServiceDeps{
		Mode:            domain.ModeDemo,
		Ledger:          repository.NewMemoryStore(),
		Prices:          demoPrices,
		Catalog:         catalog,
		Clock:           clock,
		Slippage:        service.RandomSlippage(demoGen),
		StartingBalance: cfg.Trading.StartingBalance,
		MaxLeverage:     cfg.Trading.MaxLeverage,
		Events:          hub.Publisher(domain.ModeDemo),
		Logger:          zlog,
	})

	leaderboard := newLeaderboardService(pool, liveStore, rdb, zlog)

	scheduler := infra.NewScheduler(infra.SchedulerConfig{
		TickSchedule: cfg.Trading.TickSchedule,
		RankSchedule: cfg.Trading.RankSchedule,
		TickTimeout:  cfg.Trading.TickTimeout,
	}, []infra.Ticker{live, demo}, leaderboard, zlog)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	// Public API
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	delivery.SetupRoutes(e, &delivery.RouterConfig{
		Live:        delivery.NewTradingHandler(live, zlog),
		Demo:        delivery.NewTradingHandler(demo, zlog),
		Leaderboard: delivery.NewLeaderboardHandler(leaderboard, zlog),
		Hub:         hub,
		JWTSecret:   cfg.Auth.JWTSecret,
		Logger:      zlog,
	})

	// Operator endpoints
	checks := map[string]ops.CheckFunc{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	opsSrv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Server.OpsPort),
		Handler: ops.NewRouter(ops.Config{
			Checks:  checks,
			Ticks:   scheduler,
			Journal: journalReader,
			Logger:  zlog,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		zlog.Info("api server starting", zap.String("addr", addr), zap.String("env", cfg.Server.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		zlog.Info("ops server starting", zap.String("addr", opsSrv.Addr))
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ops server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		zlog.Info("shutting down")
	case serveErr = <-errCh:
		zlog.Error("server failed, shutting down", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		zlog.Warn("api server forced to shutdown", zap.Error(serr))
	}
	if serr := opsSrv.Shutdown(shutdownCtx); serr != nil {
		zlog.Warn("ops server forced to shutdown", zap.Error(serr))
	}

	zlog.Info("server exited gracefully")
	return serveErr
}

// newLeaderboardService ranks the live ledger, through the database when
// there is one
func newLeaderboardService(pool *pgxpool.Pool, store *repository.MemoryStore, rdb *redis.Client, zlog *zap.Logger) *usecase.LeaderboardServiceImpl {
	if pool != nil {
		return usecase.NewLeaderboardService(
			repository.NewLeaderboardRepository(pool),
			repository.NewPortfolioRepository(pool),
			rdb,
			zlog,
		)
	}
	return usecase.NewLeaderboardService(store, store.Repositories().Portfolios, rdb, zlog)
}
