package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradeledger/configs"
	"tradeledger/internal/domain"
	"tradeledger/internal/journal"
	"tradeledger/internal/repository"
	"tradeledger/internal/service"
	"tradeledger/internal/usecase"
	"tradeledger/internal/utils"
)

type simOptions struct {
	Seed      int64
	Steps     int
	Interval  time.Duration
	OpenEvery int
	Balance   decimal.Decimal
	Leverage  decimal.Decimal
	Journal   string
}

type simResult struct {
	UserID    uuid.UUID
	Opened    int
	Rejected  int
	AutoClose int
	Portfolio *domain.Portfolio
}

var simOpts = simOptions{
	Balance:  decimal.NewFromInt(100000),
	Leverage: decimal.NewFromInt(10),
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a demo trading simulation",
	Long: `Run a deterministic simulation on an in-memory demo ledger.

Every --open-every steps a market order with a 0.5% stop loss and a 1% take
profit is opened on a random instrument. Each step advances the clock and
marks every position to market. Remaining positions are closed at the end.

Examples:
  ledgerctl simulate --steps 500 --seed 42
  ledgerctl simulate --journal ./sim.sqlite`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	f := simulateCmd.Flags()
	f.Int64Var(&simOpts.Seed, "seed", 1, "price generator seed")
	f.IntVar(&simOpts.Steps, "steps", 200, "number of ticks")
	f.DurationVar(&simOpts.Interval, "interval", 10*time.Second, "simulated time between ticks")
	f.IntVar(&simOpts.OpenEvery, "open-every", 10, "open a trade every N ticks")
	f.StringVar(&simOpts.Journal, "journal", "", "record settlements to this SQLite file")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	catalog, err := configs.LoadInstruments("")
	if err != nil {
		return err
	}
	res, err := simulate(cmd.Context(), catalog, simOpts, zap.NewNop())
	if err != nil {
		return err
	}
	printSimResult(cmd.OutOrStdout(), res)
	return nil
}

func simulate(ctx context.Context, catalog *domain.InstrumentCatalog, opts simOptions, log *zap.Logger) (*simResult, error) {
	if opts.Steps <= 0 || opts.OpenEvery <= 0 {
		return nil, fmt.Errorf("steps and open-every must be positive")
	}

	clock := utils.NewManualClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	gen := service.NewPriceGenerator(opts.Seed, catalog, clock)

	deps := usecase.TradingServiceDeps{
		Mode:            domain.ModeDemo,
		Ledger:          repository.NewMemoryStore(),
		Prices:          service.NewMockPriceSource(gen, clock),
		Catalog:         catalog,
		Clock:           clock,
		Slippage:        service.RandomSlippage(gen),
		StartingBalance: opts.Balance,
		Logger:          log,
	}
	if opts.Journal != "" {
		j, err := journal.NewSQLite(opts.Journal)
		if err != nil {
			return nil, err
		}
		defer j.Close()
		deps.Journal = j
	}
	svc := usecase.NewTradingService(deps)

	res := &simResult{UserID: uuid.New()}
	if _, err := svc.EnsurePortfolio(ctx, res.UserID, nil); err != nil {
		return nil, err
	}

	symbols := catalog.Symbols()
	for step := 1; step <= opts.Steps; step++ {
		clock.Advance(opts.Interval)

		if step%opts.OpenEvery == 0 {
			sym := symbols[int(gen.Float64()*float64(len(symbols)))%len(symbols)]
			req, err := simOrder(ctx, svc, catalog.Lookup(sym), gen.Float64() < 0.5, opts.Leverage)
			if err != nil {
				return nil, err
			}
			if _, err := svc.OpenTrade(ctx, res.UserID, req); err != nil {
				res.Rejected++
			} else {
				res.Opened++
			}
		}

		tick, err := svc.MarkToMarket(ctx, res.UserID)
		if err != nil {
			return nil, err
		}
		res.AutoClose += len(tick.Closed)
	}

	if _, err := svc.CloseAllTrades(ctx, res.UserID, "Simulation End"); err != nil {
		return nil, err
	}
	p, err := svc.GetPortfolio(ctx, res.UserID)
	if err != nil {
		return nil, err
	}
	res.Portfolio = p
	return res, nil
}

func simOrder(ctx context.Context, svc *usecase.TradingService, inst domain.Instrument, long bool, leverage decimal.Decimal) (domain.TradeRequest, error) {
	q, err := svc.GetQuote(ctx, inst.Symbol)
	if err != nil {
		return domain.TradeRequest{}, err
	}

	qty := decimal.NewFromInt(1)
	switch inst.AssetClass {
	case domain.AssetForex:
		qty = decimal.RequireFromString("0.1")
	case domain.AssetEquities:
		qty = decimal.NewFromInt(10)
	case domain.AssetCrypto:
		qty = decimal.RequireFromString("0.05")
	}

	stopDist := q.Price.Mul(decimal.RequireFromString("0.005"))
	takeDist := q.Price.Mul(decimal.RequireFromString("0.01"))
	side := domain.PositionLong
	sl, tp := q.Price.Sub(stopDist), q.Price.Add(takeDist)
	if !long {
		side = domain.PositionShort
		sl, tp = q.Price.Add(stopDist), q.Price.Sub(takeDist)
	}

	return domain.TradeRequest{
		Symbol:       inst.Symbol,
		PositionType: side,
		OrderType:    domain.OrderMarket,
		Quantity:     qty,
		Leverage:     leverage,
		StopLoss:     &sl,
		TakeProfit:   &tp,
	}, nil
}

func printSimResult(w io.Writer, res *simResult) {
	p := res.Portfolio
	fmt.Fprintf(w, "user:            %s\n", res.UserID)
	fmt.Fprintf(w, "opened:          %d (rejected %d)\n", res.Opened, res.Rejected)
	fmt.Fprintf(w, "auto closed:     %d\n", res.AutoClose)
	fmt.Fprintf(w, "starting:        %s\n", p.StartingBalance.StringFixed(2))
	fmt.Fprintf(w, "final equity:    %s\n", p.TotalEquity.StringFixed(2))
	fmt.Fprintf(w, "realized pnl:    %s\n", p.RealizedPnL.StringFixed(2))
	fmt.Fprintf(w, "return:          %s%%\n", p.ReturnPercentage().StringFixed(2))
	fmt.Fprintf(w, "win rate:        %s%% (%d won, %d lost)\n", p.WinRate.StringFixed(2), p.WinningTrades, p.LosingTrades)
	fmt.Fprintf(w, "largest win:     %s\n", p.LargestWin.StringFixed(2))
	fmt.Fprintf(w, "largest loss:    %s\n", p.LargestLoss.StringFixed(2))
}
