package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is a single position opened against a portfolio.
type Trade struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Symbol       string          `json:"symbol"`
	AssetClass   AssetClass      `json:"asset_class"`
	PositionType string          `json:"position_type"`
	OrderType    string          `json:"order_type"`
	OrderStatus  string          `json:"order_status"`
	Quantity     decimal.Decimal `json:"quantity"` // lots for forex, units otherwise
	Units        decimal.Decimal `json:"units"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	Leverage     decimal.Decimal `json:"leverage"`
	Notional     decimal.Decimal `json:"notional_value"`
	MarginUsed   decimal.Decimal `json:"margin_used"`
	Commission   decimal.Decimal `json:"commission"`
	Slippage     decimal.Decimal `json:"slippage"`
	PipValue     decimal.Decimal `json:"pip_value"`
	Swap         decimal.Decimal `json:"swap"`

	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`

	CurrentPrice decimal.Decimal `json:"current_price"`
	HighestPrice decimal.Decimal `json:"highest_price"`
	LowestPrice  decimal.Decimal `json:"lowest_price"`
	PnL          decimal.Decimal `json:"pnl"`

	ExitPrice       *decimal.Decimal `json:"exit_price,omitempty"`
	GrossPnL        *decimal.Decimal `json:"gross_pnl,omitempty"`
	NetPnL          *decimal.Decimal `json:"net_pnl,omitempty"`
	AutoCloseReason *string          `json:"auto_close_reason,omitempty"`
	IsClosed        bool             `json:"is_closed"`

	CreatedAt   time.Time  `json:"created_at"`
	FilledAt    *time.Time `json:"filled_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// PositionType constants
const (
	PositionLong  = "long"
	PositionShort = "short"
)

// OrderType constants
const (
	OrderMarket    = "market"
	OrderLimit     = "limit"
	OrderStop      = "stop"
	OrderStopLimit = "stop_limit"
)

// OrderStatus constants
const (
	StatusPending   = "pending"
	StatusFilled    = "filled"
	StatusPartial   = "partial"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// Close reasons recorded on settled trades
const (
	ReasonStopLoss    = "Stop Loss"
	ReasonTakeProfit  = "Take Profit"
	ReasonManualClose = "Manual Close"
)

// IsLong checks if the trade is a long position
func (t *Trade) IsLong() bool {
	return t.PositionType == PositionLong
}

// IsOpen reports whether the trade is filled and not yet settled.
func (t *Trade) IsOpen() bool {
	return t.OrderStatus == StatusFilled && !t.IsClosed
}

// DirectionalPnL is (price - entry) * units for longs and the negation for shorts.
func (t *Trade) DirectionalPnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(t.EntryPrice)
	if !t.IsLong() {
		diff = diff.Neg()
	}
	return diff.Mul(t.Units)
}

// Mark moves an open trade to price. Closed trades are left untouched.
func (t *Trade) Mark(price decimal.Decimal) {
	if t.IsClosed {
		return
	}
	t.CurrentPrice = price
	if t.HighestPrice.IsZero() || price.GreaterThan(t.HighestPrice) {
		t.HighestPrice = price
	}
	if t.LowestPrice.IsZero() || price.LessThan(t.LowestPrice) {
		t.LowestPrice = price
	}
	t.PnL = t.DirectionalPnL(price)
}

// CheckAutoClose checks if stop loss or take profit is hit at price.
// Stop loss is evaluated first.
func (t *Trade) CheckAutoClose(price decimal.Decimal) (reason string, hit bool) {
	if t.IsLong() {
		if t.StopLoss != nil && price.LessThanOrEqual(*t.StopLoss) {
			return ReasonStopLoss, true
		}
		if t.TakeProfit != nil && price.GreaterThanOrEqual(*t.TakeProfit) {
			return ReasonTakeProfit, true
		}
		return "", false
	}

	if t.StopLoss != nil && price.GreaterThanOrEqual(*t.StopLoss) {
		return ReasonStopLoss, true
	}
	if t.TakeProfit != nil && price.LessThanOrEqual(*t.TakeProfit) {
		return ReasonTakeProfit, true
	}
	return "", false
}

// Settlement is the cash outcome of closing a trade.
type Settlement struct {
	ExitPrice      decimal.Decimal
	GrossPnL       decimal.Decimal
	ExitCommission decimal.Decimal
	NetPnL         decimal.Decimal
	// Credit is what goes back to cash: released margin plus net P&L.
	Credit decimal.Decimal
}

// CalculateSettlement computes the close outcome without mutating the trade.
func (t *Trade) CalculateSettlement(exitPrice decimal.Decimal) Settlement {
	gross := t.DirectionalPnL(exitPrice)
	exitCommission := exitPrice.Mul(t.Units).Mul(CommissionRate)
	net := gross.Sub(exitCommission).Sub(t.Swap)
	return Settlement{
		ExitPrice:      exitPrice,
		GrossPnL:       gross,
		ExitCommission: exitCommission,
		NetPnL:         net,
		Credit:         t.MarginUsed.Add(net),
	}
}

// Close settles the trade at exitPrice and returns the settlement.
func (t *Trade) Close(exitPrice decimal.Decimal, reason string, now time.Time) (Settlement, error) {
	if t.IsClosed {
		return Settlement{}, ErrAlreadyClosed
	}
	if t.OrderStatus != StatusFilled {
		return Settlement{}, invalid("order_status", "only filled trades can be closed")
	}
	if reason == "" {
		reason = ReasonManualClose
	}

	s := t.CalculateSettlement(exitPrice)
	t.Mark(exitPrice)

	exit := s.ExitPrice
	gross := s.GrossPnL
	net := s.NetPnL
	closedAt := now
	t.ExitPrice = &exit
	t.GrossPnL = &gross
	t.NetPnL = &net
	t.PnL = net
	t.Commission = t.Commission.Add(s.ExitCommission)
	t.AutoCloseReason = &reason
	t.ClosedAt = &closedAt
	t.IsClosed = true
	return s, nil
}
