package dto

import (
	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// OpenTradeRequest is the body of POST /trades. Numbers may be sent as JSON
// numbers or strings.
type OpenTradeRequest struct {
	Symbol         string           `json:"symbol"`
	PositionType   string           `json:"position_type"`
	OrderType      string           `json:"order_type"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Leverage       decimal.Decimal  `json:"leverage"`
	LimitPrice     *decimal.Decimal `json:"limit_price,omitempty"`
	StopLoss       *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit     *decimal.Decimal `json:"take_profit,omitempty"`
	ExpectedMargin *decimal.Decimal `json:"margin_required,omitempty"`
}

// ToDomain converts the request to a TradeRequest
func (r OpenTradeRequest) ToDomain() domain.TradeRequest {
	return domain.TradeRequest{
		Symbol:         r.Symbol,
		PositionType:   r.PositionType,
		OrderType:      r.OrderType,
		Quantity:       r.Quantity,
		Leverage:       r.Leverage,
		LimitPrice:     r.LimitPrice,
		StopLoss:       r.StopLoss,
		TakeProfit:     r.TakeProfit,
		ExpectedMargin: r.ExpectedMargin,
	}
}

// CloseAllOutput reports the result of closing every open trade
type CloseAllOutput struct {
	Closed []*domain.Trade `json:"closed"`
	Failed string          `json:"failed,omitempty"`
}

// TickOutput is the response of POST /tick
type TickOutput struct {
	Updated    int                 `json:"updated"`
	Skipped    int                 `json:"skipped"`
	Closed     []*domain.Trade     `json:"closed"`
	Unrealized string              `json:"unrealized_pnl"`
	Portfolio  PortfolioOutput     `json:"portfolio"`
	Quotes     []domain.PriceQuote `json:"quotes"`
}

// NewTickOutput converts a TickResult
func NewTickOutput(res *domain.TickResult) TickOutput {
	return TickOutput{
		Updated:    res.Updated,
		Skipped:    res.Skipped,
		Closed:     res.Closed,
		Unrealized: res.Unrealized.StringFixed(2),
		Portfolio:  NewPortfolioOutput(res.Portfolio),
		Quotes:     res.Quotes,
	}
}
