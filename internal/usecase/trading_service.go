package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradeledger/internal/domain"
	"tradeledger/internal/metrics"
)

// quoteFetchLimit bounds concurrent price lookups during a tick
const quoteFetchLimit = 8

// TradingServiceDeps wires the capabilities a TradingService runs on.
// Events, Journal and Notifier are optional.
type TradingServiceDeps struct {
	Mode            domain.Mode
	Ledger          domain.Ledger
	Prices          domain.PriceSource
	Catalog         *domain.InstrumentCatalog
	Clock           domain.Clock
	Slippage        domain.SlippageFunc
	StartingBalance decimal.Decimal
	MaxLeverage     decimal.Decimal
	Events          domain.EventPublisher
	Journal         domain.SettlementJournal
	Notifier        domain.Notifier
	Logger          *zap.Logger
}

// TradingService is the trade accounting engine. Live and demo trading run
// the same code against different ledgers and price sources.
type TradingService struct {
	mode            domain.Mode
	ledger          domain.Ledger
	prices          domain.PriceSource
	catalog         *domain.InstrumentCatalog
	clock           domain.Clock
	slippage        domain.SlippageFunc
	startingBalance decimal.Decimal
	maxLeverage     decimal.Decimal
	events          domain.EventPublisher
	journal         domain.SettlementJournal
	notifier        domain.Notifier
	logger          *zap.Logger
}

var _ domain.TradingService = (*TradingService)(nil)

// NewTradingService creates a new TradingService
func NewTradingService(deps TradingServiceDeps) *TradingService {
	s := &TradingService{
		mode:            deps.Mode,
		ledger:          deps.Ledger,
		prices:          deps.Prices,
		catalog:         deps.Catalog,
		clock:           deps.Clock,
		slippage:        deps.Slippage,
		startingBalance: deps.StartingBalance,
		maxLeverage:     deps.MaxLeverage,
		events:          deps.Events,
		journal:         deps.Journal,
		notifier:        deps.Notifier,
		logger:          deps.Logger,
	}
	if s.slippage == nil {
		s.slippage = domain.NoSlippage
	}
	if s.maxLeverage.IsZero() {
		s.maxLeverage = domain.DefaultMaxLeverage
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("mode", string(s.mode)))
	return s
}

// Mode reports which ledger this engine runs on
func (s *TradingService) Mode() domain.Mode {
	return s.mode
}

// EnsurePortfolio returns the user's portfolio, creating it with the
// configured starting balance if it does not exist yet
func (s *TradingService) EnsurePortfolio(ctx context.Context, userID uuid.UUID, leagueID *uuid.UUID) (*domain.Portfolio, error) {
	repo := s.ledger.Repositories().Portfolios

	p, err := repo.GetByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrPortfolioNotFound) {
		return nil, err
	}

	p = domain.NewPortfolio(userID, s.startingBalance, leagueID, s.clock.Now())
	if err := repo.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrPortfolioExists) {
			return repo.GetByUserID(ctx, userID)
		}
		return nil, err
	}

	s.logger.Info("portfolio created",
		zap.String("user_id", userID.String()),
		zap.String("starting_balance", s.startingBalance.String()),
	)
	return p, nil
}

// GetPortfolio returns the user's portfolio
func (s *TradingService) GetPortfolio(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	return s.ledger.Repositories().Portfolios.GetByUserID(ctx, userID)
}

// ResetPortfolio deletes every trade of a demo user and restores the
// starting balance
func (s *TradingService) ResetPortfolio(ctx context.Context, userID uuid.UUID) (*domain.Portfolio, error) {
	if s.mode != domain.ModeDemo {
		return nil, domain.ErrUnsupportedMode
	}

	var reset *domain.Portfolio
	err := s.ledger.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := repos.Portfolios.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := repos.Trades.DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		p.Reset(s.clock.Now())
		if err := repos.Portfolios.Update(ctx, p); err != nil {
			return err
		}
		reset = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("portfolio reset", zap.String("user_id", userID.String()))
	s.recordEquity(ctx, reset)
	return reset, nil
}

// ListTrades returns the user's trades, newest first
func (s *TradingService) ListTrades(ctx context.Context, userID uuid.UUID, filter domain.TradeFilter) ([]*domain.Trade, error) {
	trades, err := s.ledger.Repositories().Trades.GetByUserID(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}
	return trades, nil
}

// GetQuote returns the current quote for a symbol
func (s *TradingService) GetQuote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.PriceQuote{}, &domain.ValidationError{Field: "symbol", Message: "is required"}
	}
	return s.quote(ctx, symbol)
}

// OpenTrade prices, sizes and admits an order, then persists the filled
// trade and the cash debit in one transaction
func (s *TradingService) OpenTrade(ctx context.Context, userID uuid.UUID, req domain.TradeRequest) (*domain.Trade, error) {
	if err := req.Validate(s.maxLeverage); err != nil {
		return nil, err
	}
	inst := s.catalog.Lookup(req.Symbol)

	var quote domain.PriceQuote
	var portfolio *domain.Portfolio
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.quote(gctx, inst.Symbol)
		quote = q
		return err
	})
	g.Go(func() error {
		p, err := s.ledger.Repositories().Portfolios.GetByUserID(gctx, userID)
		portfolio = p
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	execPrice, slip, err := domain.ExecutionPrice(quote, req.PositionType, req.OrderType, req.LimitPrice, s.slippage())
	if err != nil {
		return nil, err
	}
	costs, err := domain.CalculateCosts(req.Quantity, execPrice, req.Leverage, inst)
	if err != nil {
		return nil, err
	}

	if req.ExpectedMargin != nil && !req.ExpectedMargin.Round(2).Equal(costs.MarginRequired.Round(2)) {
		s.logger.Warn("client margin differs from server margin",
			zap.String("user_id", userID.String()),
			zap.String("symbol", inst.Symbol),
			zap.String("client_margin", req.ExpectedMargin.String()),
			zap.String("server_margin", costs.MarginRequired.StringFixed(2)),
		)
	}

	// Reject early without opening a transaction; re-checked under the lock.
	if err := domain.CheckAdmission(portfolio, costs); err != nil {
		metrics.AdmissionRejections.WithLabelValues(string(s.mode)).Inc()
		return nil, err
	}

	now := s.clock.Now()
	trade := &domain.Trade{
		ID:           uuid.New(),
		UserID:       userID,
		Symbol:       inst.Symbol,
		AssetClass:   inst.AssetClass,
		PositionType: req.PositionType,
		OrderType:    req.OrderType,
		OrderStatus:  domain.StatusFilled,
		Quantity:     req.Quantity,
		Units:        costs.Units,
		EntryPrice:   execPrice,
		Leverage:     req.Leverage,
		Notional:     costs.Notional,
		MarginUsed:   costs.MarginRequired,
		Commission:   costs.Commission,
		Slippage:     slip,
		PipValue:     costs.PipValue,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Swap:         decimal.Zero,
		CurrentPrice: execPrice,
		HighestPrice: execPrice,
		LowestPrice:  execPrice,
		PnL:          decimal.Zero,
		CreatedAt:    now,
		FilledAt:     &now,
	}

	var updated *domain.Portfolio
	err = s.ledger.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := repos.Portfolios.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := domain.CheckAdmission(p, costs); err != nil {
			return err
		}
		if err := repos.Trades.Save(ctx, trade); err != nil {
			return err
		}
		p.Debit(costs.TotalRequired())
		if err := s.recompute(ctx, repos, p, now); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			metrics.AdmissionRejections.WithLabelValues(string(s.mode)).Inc()
		}
		return nil, err
	}

	metrics.TradesOpened.WithLabelValues(string(s.mode), trade.Symbol, trade.PositionType).Inc()
	s.logger.Info("trade opened",
		zap.String("user_id", userID.String()),
		zap.String("trade_id", trade.ID.String()),
		zap.String("symbol", trade.Symbol),
		zap.String("side", trade.PositionType),
		zap.String("entry", trade.EntryPrice.String()),
		zap.String("units", trade.Units.String()),
		zap.String("margin", trade.MarginUsed.StringFixed(2)),
		zap.String("cash", updated.CashBalance.StringFixed(2)),
	)
	s.publishTrade(domain.EventTradeOpened, trade)
	s.recordEquity(ctx, updated)
	return trade, nil
}

// CloseTrade settles an open trade. Without an explicit exit price, longs
// close at the bid and shorts at the ask.
func (s *TradingService) CloseTrade(ctx context.Context, userID, tradeID uuid.UUID, req domain.CloseRequest) (*domain.Trade, error) {
	trade, err := s.ledger.Repositories().Trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.UserID != userID {
		return nil, domain.ErrTradeNotFound
	}
	if trade.IsClosed {
		return nil, domain.ErrAlreadyClosed
	}
	if trade.OrderStatus != domain.StatusFilled {
		return nil, &domain.ValidationError{Field: "order_status", Message: "only filled trades can be closed"}
	}

	var exitPrice decimal.Decimal
	if req.ExitPrice != nil {
		if !req.ExitPrice.IsPositive() {
			return nil, &domain.ValidationError{Field: "exit_price", Message: "must be positive"}
		}
		exitPrice = *req.ExitPrice
	} else {
		q, err := s.quote(ctx, trade.Symbol)
		if err != nil {
			return nil, err
		}
		exitPrice = domain.DefaultExitPrice(q, trade.PositionType)
	}

	reason := req.Reason
	if reason == "" {
		reason = domain.ReasonManualClose
	}

	var closed *domain.Trade
	var settlement domain.Settlement
	var updated *domain.Portfolio
	now := s.clock.Now()
	err = s.ledger.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := repos.Portfolios.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		t, err := repos.Trades.GetByID(ctx, tradeID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return domain.ErrTradeNotFound
		}
		// re-checked under the lock: a tick may have auto-closed it
		settlement, err = t.Close(exitPrice, reason, now)
		if err != nil {
			return err
		}
		if err := repos.Trades.Update(ctx, t); err != nil {
			return err
		}
		p.Credit(settlement.Credit)
		if err := s.recompute(ctx, repos, p, now); err != nil {
			return err
		}
		closed, updated = t, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSettlement(ctx, closed, settlement, updated)
	return closed, nil
}

// CloseAllTrades closes every open trade of the user at default prices.
// Failures do not stop the remaining closes; they are returned joined.
func (s *TradingService) CloseAllTrades(ctx context.Context, userID uuid.UUID, reason string) ([]*domain.Trade, error) {
	open, err := s.ledger.Repositories().Trades.GetOpenByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	closed := make([]*domain.Trade, 0, len(open))
	var errs []error
	for _, t := range open {
		c, err := s.CloseTrade(ctx, userID, t.ID, domain.CloseRequest{Reason: reason})
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyClosed) {
				continue
			}
			s.logger.Warn("failed to close trade",
				zap.String("user_id", userID.String()),
				zap.String("trade_id", t.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("trade %s: %w", t.ID, err))
			continue
		}
		closed = append(closed, c)
	}

	return closed, errors.Join(errs...)
}

// CancelTrade cancels a pending trade. No money moves.
func (s *TradingService) CancelTrade(ctx context.Context, userID, tradeID uuid.UUID) (*domain.Trade, error) {
	var cancelled *domain.Trade
	err := s.ledger.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		t, err := repos.Trades.GetByID(ctx, tradeID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return domain.ErrTradeNotFound
		}
		if t.OrderStatus != domain.StatusPending {
			return domain.ErrTradeNotCancellable
		}
		now := s.clock.Now()
		t.OrderStatus = domain.StatusCancelled
		t.CancelledAt = &now
		if err := repos.Trades.Update(ctx, t); err != nil {
			return err
		}
		cancelled = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trade cancelled",
		zap.String("user_id", userID.String()),
		zap.String("trade_id", tradeID.String()),
	)
	return cancelled, nil
}

// MarkToMarket revalues the user's open trades at current prices, settles
// any that hit stop loss or take profit, and refreshes the portfolio
func (s *TradingService) MarkToMarket(ctx context.Context, userID uuid.UUID) (*domain.TickResult, error) {
	repos := s.ledger.Repositories()
	open, err := repos.Trades.GetOpenByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	symbols := make(map[string]bool)
	for _, t := range open {
		symbols[t.Symbol] = true
	}
	quotes := s.fetchQuotes(ctx, symbols)
	s.publishQuotes(quotes)

	result := &domain.TickResult{UserID: userID, Closed: []*domain.Trade{}}
	settlements := make(map[uuid.UUID]domain.Settlement)
	now := s.clock.Now()

	err = s.ledger.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		result.Updated, result.Skipped = 0, 0
		result.Closed = result.Closed[:0]
		clear(settlements)

		p, err := repos.Portfolios.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		// re-read under the lock so trades closed meanwhile are not touched
		trades, err := repos.Trades.GetOpenByUserID(ctx, userID)
		if err != nil {
			return err
		}

		for _, t := range trades {
			q, ok := quotes[t.Symbol]
			if !ok {
				result.Skipped++
				continue
			}

			t.Mark(q.Price)
			if reason, hit := t.CheckAutoClose(q.Price); hit {
				st, err := t.Close(q.Price, reason, now)
				if err != nil {
					return err
				}
				p.Credit(st.Credit)
				settlements[t.ID] = st
				result.Closed = append(result.Closed, t)
			}
			if err := repos.Trades.Update(ctx, t); err != nil {
				return err
			}
			result.Updated++
		}

		if err := s.recompute(ctx, repos, p, now); err != nil {
			return err
		}
		result.Portfolio = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Unrealized = result.Portfolio.UnrealizedPnL
	result.Quotes = sortedQuotes(quotes)
	for _, t := range result.Closed {
		s.afterSettlement(ctx, t, settlements[t.ID], result.Portfolio)
	}
	if len(result.Closed) == 0 && result.Updated > 0 {
		s.recordEquity(ctx, result.Portfolio)
	}
	return result, nil
}

// MarkToMarketAll runs MarkToMarket for every user holding open trades.
// A failure for one user is logged and does not stop the others.
func (s *TradingService) MarkToMarketAll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.TickDuration.WithLabelValues(string(s.mode)).Observe(time.Since(start).Seconds())
	}()

	users, err := s.ledger.Repositories().Trades.GetUserIDsWithOpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users with open trades: %w", err)
	}

	openPositions, closed := 0, 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := s.MarkToMarket(ctx, userID)
		if err != nil {
			s.logger.Warn("mark to market failed", zap.String("user_id", userID.String()), zap.Error(err))
			continue
		}
		openPositions += res.Portfolio.PositionCount
		closed += len(res.Closed)
	}

	metrics.OpenPositions.WithLabelValues(string(s.mode)).Set(float64(openPositions))
	if len(users) > 0 {
		s.logger.Debug("tick complete",
			zap.Int("users", len(users)),
			zap.Int("open_positions", openPositions),
			zap.Int("auto_closed", closed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

// recompute rebuilds portfolio statistics from the full trade history and
// saves the portfolio
func (s *TradingService) recompute(ctx context.Context, repos domain.Repositories, p *domain.Portfolio, now time.Time) error {
	trades, err := repos.Trades.GetByUserID(ctx, p.UserID, domain.FilterAll)
	if err != nil {
		return err
	}
	domain.RecomputeStatistics(p, trades)
	p.UpdatedAt = now
	return repos.Portfolios.Update(ctx, p)
}

func (s *TradingService) quote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	q, err := s.prices.Quote(ctx, symbol)
	if err != nil {
		metrics.PriceErrors.WithLabelValues(string(s.mode), symbol).Inc()
		if errors.Is(err, domain.ErrPriceUnavailable) {
			return domain.PriceQuote{}, err
		}
		return domain.PriceQuote{}, fmt.Errorf("%s: %v: %w", symbol, err, domain.ErrPriceUnavailable)
	}
	return q, nil
}

// fetchQuotes looks up every symbol concurrently. Symbols without a quote
// are left out of the result.
func (s *TradingService) fetchQuotes(ctx context.Context, symbols map[string]bool) map[string]domain.PriceQuote {
	quotes := make(map[string]domain.PriceQuote, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(quoteFetchLimit)
	for symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			q, err := s.quote(gctx, symbol)
			if err != nil {
				s.logger.Warn("quote unavailable, skipping symbol", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			mu.Lock()
			quotes[symbol] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return quotes
}

func (s *TradingService) afterSettlement(ctx context.Context, t *domain.Trade, st domain.Settlement, p *domain.Portfolio) {
	reason := ""
	if t.AutoCloseReason != nil {
		reason = *t.AutoCloseReason
	}
	metrics.TradesClosed.WithLabelValues(string(s.mode), reason).Inc()
	s.logger.Info("trade closed",
		zap.String("user_id", t.UserID.String()),
		zap.String("trade_id", t.ID.String()),
		zap.String("symbol", t.Symbol),
		zap.String("reason", reason),
		zap.String("exit", st.ExitPrice.String()),
		zap.String("net_pnl", st.NetPnL.StringFixed(2)),
		zap.String("cash", p.CashBalance.StringFixed(2)),
	)
	s.publishTrade(domain.EventTradeClosed, t)

	if s.journal != nil {
		openedAt := t.CreatedAt
		if t.FilledAt != nil {
			openedAt = *t.FilledAt
		}
		rec := domain.SettlementRecord{
			TradeID:      t.ID,
			UserID:       t.UserID,
			Symbol:       t.Symbol,
			PositionType: t.PositionType,
			Units:        t.Units,
			EntryPrice:   t.EntryPrice,
			ExitPrice:    st.ExitPrice,
			GrossPnL:     st.GrossPnL,
			Commission:   t.Commission,
			NetPnL:       st.NetPnL,
			Reason:       reason,
			OpenedAt:     openedAt,
			ClosedAt:     *t.ClosedAt,
		}
		if err := s.journal.RecordSettlement(ctx, rec); err != nil {
			s.logger.Warn("failed to journal settlement", zap.String("trade_id", t.ID.String()), zap.Error(err))
		}
	}
	s.recordEquity(ctx, p)

	if s.notifier != nil && (reason == domain.ReasonStopLoss || reason == domain.ReasonTakeProfit) {
		nctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.notifier.NotifyAutoClose(nctx, t); err != nil {
			s.logger.Warn("failed to send auto-close notification", zap.String("trade_id", t.ID.String()), zap.Error(err))
		}
	}
}

func (s *TradingService) recordEquity(ctx context.Context, p *domain.Portfolio) {
	if s.journal == nil || p == nil {
		return
	}
	snap := domain.EquitySnapshot{
		UserID:        p.UserID,
		At:            s.clock.Now(),
		Cash:          p.CashBalance,
		Equity:        p.TotalEquity,
		RealizedPnL:   p.RealizedPnL,
		UnrealizedPnL: p.UnrealizedPnL,
	}
	if err := s.journal.RecordEquity(ctx, snap); err != nil {
		s.logger.Warn("failed to journal equity", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
}

func (s *TradingService) publishTrade(eventType string, t *domain.Trade) {
	if s.events == nil {
		return
	}
	cp := *t
	s.events.PublishTradeEvent(domain.TradeEvent{Type: eventType, UserID: t.UserID, Trade: &cp})
}

func (s *TradingService) publishQuotes(quotes map[string]domain.PriceQuote) {
	if s.events == nil {
		return
	}
	for _, q := range sortedQuotes(quotes) {
		s.events.PublishQuote(q)
	}
}

func sortedQuotes(quotes map[string]domain.PriceQuote) []domain.PriceQuote {
	out := make([]domain.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
