package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mode selects which ledger and price source an engine instance runs on.
type Mode string

// Mode constants
const (
	ModeLive Mode = "live"
	ModeDemo Mode = "demo"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeDemo:
		return Mode(s), nil
	}
	return "", invalid("mode", "must be live or demo")
}

// PriceSource supplies quotes for symbols
type PriceSource interface {
	// Quote returns the latest quote or ErrPriceUnavailable
	Quote(ctx context.Context, symbol string) (PriceQuote, error)
}

// Clock abstracts time so tests can control it
type Clock interface {
	Now() time.Time
}

// EventPublisher pushes realtime updates to connected clients
type EventPublisher interface {
	PublishQuote(quote PriceQuote)
	PublishTradeEvent(event TradeEvent)
}

// Trade event types
const (
	EventTradeOpened = "trade_opened"
	EventTradeClosed = "trade_closed"
)

// TradeEvent describes a change to a trade
type TradeEvent struct {
	Type   string    `json:"type"`
	UserID uuid.UUID `json:"user_id"`
	Trade  *Trade    `json:"trade"`
}

// SettlementRecord is the journal row written when a trade closes.
type SettlementRecord struct {
	TradeID      uuid.UUID
	UserID       uuid.UUID
	Symbol       string
	PositionType string
	Units        decimal.Decimal
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	GrossPnL     decimal.Decimal
	Commission   decimal.Decimal
	NetPnL       decimal.Decimal
	Reason       string
	OpenedAt     time.Time
	ClosedAt     time.Time
}

// EquitySnapshot captures a portfolio's balances at a point in time.
type EquitySnapshot struct {
	UserID        uuid.UUID
	At            time.Time
	Cash          decimal.Decimal
	Equity        decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// SettlementJournal keeps an append-only record of settlements and equity
type SettlementJournal interface {
	RecordSettlement(ctx context.Context, rec SettlementRecord) error
	RecordEquity(ctx context.Context, snap EquitySnapshot) error
}

// Notifier alerts a user that a trade was closed automatically
type Notifier interface {
	NotifyAutoClose(ctx context.Context, trade *Trade) error
}

// TradeRequest is an order to open a position.
type TradeRequest struct {
	Symbol       string
	PositionType string
	OrderType    string
	Quantity     decimal.Decimal
	Leverage     decimal.Decimal
	LimitPrice   *decimal.Decimal
	StopLoss     *decimal.Decimal
	TakeProfit   *decimal.Decimal

	// ExpectedMargin is the margin the client computed. It is only compared
	// against the server value.
	ExpectedMargin *decimal.Decimal
}

// Validate checks the request shape. maxLeverage caps the leverage.
func (r *TradeRequest) Validate(maxLeverage decimal.Decimal) error {
	r.Symbol = NormalizeSymbol(r.Symbol)
	if r.Symbol == "" {
		return invalid("symbol", "is required")
	}
	if r.PositionType != PositionLong && r.PositionType != PositionShort {
		return invalid("position_type", "must be long or short")
	}
	if r.OrderType == "" {
		r.OrderType = OrderMarket
	}
	switch r.OrderType {
	case OrderMarket, OrderLimit, OrderStop, OrderStopLimit:
	default:
		return invalid("order_type", "must be market, limit, stop or stop_limit")
	}
	if !r.Quantity.IsPositive() {
		return invalid("quantity", "must be positive")
	}
	if r.Leverage.IsZero() {
		r.Leverage = MinLeverage
	}
	if maxLeverage.IsZero() {
		maxLeverage = DefaultMaxLeverage
	}
	if r.Leverage.LessThan(MinLeverage) || r.Leverage.GreaterThan(maxLeverage) {
		return invalid("leverage", "must be between 1 and "+maxLeverage.String())
	}
	if r.OrderType != OrderMarket && (r.LimitPrice == nil || !r.LimitPrice.IsPositive()) {
		return invalid("limit_price", "required for "+r.OrderType+" orders")
	}
	if r.StopLoss != nil && !r.StopLoss.IsPositive() {
		return invalid("stop_loss", "must be positive")
	}
	if r.TakeProfit != nil && !r.TakeProfit.IsPositive() {
		return invalid("take_profit", "must be positive")
	}
	return nil
}

// CloseRequest optionally overrides the exit price and reason of a close.
type CloseRequest struct {
	ExitPrice *decimal.Decimal
	Reason    string
}

// TradeFilter selects trades by lifecycle
type TradeFilter string

// TradeFilter constants
const (
	FilterAll    TradeFilter = "all"
	FilterOpen   TradeFilter = "open"
	FilterClosed TradeFilter = "closed"
)

// ParseTradeFilter maps a query value to a filter. Empty means all.
func ParseTradeFilter(s string) (TradeFilter, error) {
	switch TradeFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterOpen, FilterClosed:
		return TradeFilter(s), nil
	}
	return "", invalid("status", "must be open, closed or all")
}

// Matches reports whether t passes the filter.
func (f TradeFilter) Matches(t *Trade) bool {
	switch f {
	case FilterOpen:
		return !t.IsClosed
	case FilterClosed:
		return t.IsClosed
	default:
		return true
	}
}

// TickResult summarizes one mark-to-market pass over a user's trades.
type TickResult struct {
	UserID     uuid.UUID       `json:"user_id"`
	Updated    int             `json:"updated"`
	Skipped    int             `json:"skipped"`
	Closed     []*Trade        `json:"closed"`
	Portfolio  *Portfolio      `json:"portfolio"`
	Quotes     []PriceQuote    `json:"quotes"`
	Unrealized decimal.Decimal `json:"unrealized_pnl"`
}

// TradingService defines the accounting engine operations
type TradingService interface {
	Mode() Mode
	EnsurePortfolio(ctx context.Context, userID uuid.UUID, leagueID *uuid.UUID) (*Portfolio, error)
	GetPortfolio(ctx context.Context, userID uuid.UUID) (*Portfolio, error)
	ResetPortfolio(ctx context.Context, userID uuid.UUID) (*Portfolio, error)
	ListTrades(ctx context.Context, userID uuid.UUID, filter TradeFilter) ([]*Trade, error)
	OpenTrade(ctx context.Context, userID uuid.UUID, req TradeRequest) (*Trade, error)
	CloseTrade(ctx context.Context, userID, tradeID uuid.UUID, req CloseRequest) (*Trade, error)
	CloseAllTrades(ctx context.Context, userID uuid.UUID, reason string) ([]*Trade, error)
	CancelTrade(ctx context.Context, userID, tradeID uuid.UUID) (*Trade, error)
	MarkToMarket(ctx context.Context, userID uuid.UUID) (*TickResult, error)
	MarkToMarketAll(ctx context.Context) error
	GetQuote(ctx context.Context, symbol string) (PriceQuote, error)
}

// LeaderboardService defines league ranking operations
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, leagueID uuid.UUID) ([]LeaderboardEntry, error)
	RefreshCompetitionRanks(ctx context.Context) error
}
