package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a point-in-time price for a symbol. Quotes are never persisted.
type PriceQuote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	Spread        decimal.Decimal `json:"spread"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Timestamp     time.Time       `json:"timestamp"`
}

var (
	spreadForex       = decimal.RequireFromString("0.005")
	spreadCrypto      = decimal.RequireFromString("0.05")
	spreadCommodities = decimal.RequireFromString("0.02")
	spreadEquities    = decimal.RequireFromString("0.01")

	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// SpreadPercent returns the bid/ask spread, in percent of price, for an asset class.
func SpreadPercent(class AssetClass) decimal.Decimal {
	switch class {
	case AssetForex:
		return spreadForex
	case AssetCrypto:
		return spreadCrypto
	case AssetCommodities:
		return spreadCommodities
	default:
		return spreadEquities
	}
}

// NewQuote derives bid and ask from a mid price using the class spread.
func NewQuote(symbol string, price decimal.Decimal, class AssetClass, at time.Time) PriceQuote {
	spread := price.Mul(SpreadPercent(class)).Div(hundred)
	half := spread.Div(two)
	return PriceQuote{
		Symbol:    NormalizeSymbol(symbol),
		Price:     price,
		Bid:       price.Sub(half),
		Ask:       price.Add(half),
		Spread:    spread,
		Timestamp: at,
	}
}
