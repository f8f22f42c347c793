package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AssetClass groups symbols that share spread and sizing rules.
type AssetClass string

// AssetClass constants
const (
	AssetForex       AssetClass = "forex"
	AssetCrypto      AssetClass = "crypto"
	AssetCommodities AssetClass = "commodities"
	AssetEquities    AssetClass = "equities"
)

// DefaultForexLotSize is the number of units in one standard forex lot.
var DefaultForexLotSize = decimal.NewFromInt(100000)

// Instrument holds the per-symbol metadata the accounting rules need.
type Instrument struct {
	Symbol     string          `json:"symbol"`
	AssetClass AssetClass      `json:"asset_class"`
	LotSize    decimal.Decimal `json:"lot_size"`
	PipSize    decimal.Decimal `json:"pip_size"`

	// MinPrice and MaxPrice bound the magnitude a feed price must have for
	// this symbol. Zero means unbounded.
	MinPrice  decimal.Decimal `json:"min_price"`
	MaxPrice  decimal.Decimal `json:"max_price"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// InRange reports whether price has the magnitude expected for the instrument.
func (i Instrument) InRange(price decimal.Decimal) bool {
	if !price.IsPositive() {
		return false
	}
	if i.MinPrice.IsPositive() && price.LessThan(i.MinPrice) {
		return false
	}
	if i.MaxPrice.IsPositive() && price.GreaterThan(i.MaxPrice) {
		return false
	}
	return true
}

// InstrumentCatalog resolves symbols to instrument metadata.
type InstrumentCatalog struct {
	bySymbol map[string]Instrument
}

// NewInstrumentCatalog builds a catalog from a list of instruments.
func NewInstrumentCatalog(instruments []Instrument) *InstrumentCatalog {
	c := &InstrumentCatalog{bySymbol: make(map[string]Instrument, len(instruments))}
	for _, inst := range instruments {
		inst.Symbol = NormalizeSymbol(inst.Symbol)
		if inst.AssetClass == "" {
			inst.AssetClass = ClassifySymbol(inst.Symbol)
		}
		if inst.LotSize.IsZero() {
			inst.LotSize = defaultLotSize(inst.AssetClass)
		}
		if inst.PipSize.IsZero() {
			inst.PipSize = PipSize(inst.Symbol)
		}
		c.bySymbol[inst.Symbol] = inst
	}
	return c
}

// Lookup returns the instrument for symbol. Unknown symbols get heuristic
// defaults so the engine can still price them.
func (c *InstrumentCatalog) Lookup(symbol string) Instrument {
	symbol = NormalizeSymbol(symbol)
	if c != nil {
		if inst, ok := c.bySymbol[symbol]; ok {
			return inst
		}
	}
	class := ClassifySymbol(symbol)
	return Instrument{
		Symbol:     symbol,
		AssetClass: class,
		LotSize:    defaultLotSize(class),
		PipSize:    PipSize(symbol),
	}
}

// Symbols returns every symbol in the catalog.
func (c *InstrumentCatalog) Symbols() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.bySymbol))
	for s := range c.bySymbol {
		out = append(out, s)
	}
	return out
}

// NormalizeSymbol upper-cases and strips separators ("eur/usd" -> "EURUSD").
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

var (
	cryptoTickers    = []string{"BTC", "ETH", "SOL", "XRP", "ADA", "DOGE", "LTC", "BNB", "DOT", "AVAX"}
	commodityTickers = []string{"XAU", "XAG", "XPT", "OIL", "WTI", "BRENT", "NATGAS", "COPPER"}
	currencyCodes    = map[string]bool{
		"USD": true, "EUR": true, "GBP": true, "JPY": true, "AUD": true, "NZD": true,
		"CAD": true, "CHF": true, "SEK": true, "NOK": true, "SGD": true, "HKD": true,
		"ZAR": true, "MXN": true, "TRY": true, "CNH": true, "PLN": true, "DKK": true,
	}
)

// ClassifySymbol guesses the asset class of a symbol missing from the catalog.
func ClassifySymbol(symbol string) AssetClass {
	s := NormalizeSymbol(symbol)
	for _, t := range commodityTickers {
		if strings.HasPrefix(s, t) {
			return AssetCommodities
		}
	}
	for _, t := range cryptoTickers {
		if strings.HasPrefix(s, t) {
			return AssetCrypto
		}
	}
	if len(s) == 6 && currencyCodes[s[:3]] && currencyCodes[s[3:]] {
		return AssetForex
	}
	return AssetEquities
}

// PipSize is 0.01 for JPY-quoted pairs and 0.0001 for everything else.
func PipSize(symbol string) decimal.Decimal {
	if strings.Contains(NormalizeSymbol(symbol), "JPY") {
		return decimal.New(1, -2)
	}
	return decimal.New(1, -4)
}

func defaultLotSize(class AssetClass) decimal.Decimal {
	if class == AssetForex {
		return DefaultForexLotSize
	}
	return decimal.NewFromInt(1)
}
