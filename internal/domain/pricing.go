package domain

import (
	"github.com/shopspring/decimal"
)

// MaxSlippage caps the adverse slippage fraction applied to market orders.
var MaxSlippage = decimal.RequireFromString("0.0005")

// SlippageFunc returns a slippage fraction in [0, MaxSlippage].
type SlippageFunc func() decimal.Decimal

// NoSlippage is a SlippageFunc that always returns zero.
func NoSlippage() decimal.Decimal { return decimal.Zero }

// ExecutionPrice determines the fill price of an order.
//
// Market longs fill at the ask and shorts at the bid, worsened by the slippage
// fraction. Limit, stop and stop-limit orders fill exactly at limitPrice.
func ExecutionPrice(quote PriceQuote, positionType, orderType string, limitPrice *decimal.Decimal, slippage decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	switch orderType {
	case OrderMarket:
	case OrderLimit, OrderStop, OrderStopLimit:
		if limitPrice == nil || !limitPrice.IsPositive() {
			return decimal.Zero, decimal.Zero, invalid("limit_price", "required for "+orderType+" orders")
		}
		return *limitPrice, decimal.Zero, nil
	default:
		return decimal.Zero, decimal.Zero, invalid("order_type", "unknown order type "+orderType)
	}

	if slippage.IsNegative() {
		slippage = decimal.Zero
	}
	if slippage.GreaterThan(MaxSlippage) {
		slippage = MaxSlippage
	}

	switch positionType {
	case PositionLong:
		return quote.Ask.Mul(decimal.NewFromInt(1).Add(slippage)), slippage, nil
	case PositionShort:
		return quote.Bid.Mul(decimal.NewFromInt(1).Sub(slippage)), slippage, nil
	default:
		return decimal.Zero, decimal.Zero, invalid("position_type", "must be long or short")
	}
}

// DefaultExitPrice is where a manual close settles: longs sell at the bid,
// shorts buy back at the ask.
func DefaultExitPrice(quote PriceQuote, positionType string) decimal.Decimal {
	if positionType == PositionShort {
		return quote.Ask
	}
	return quote.Bid
}
