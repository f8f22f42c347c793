package service

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

const (
	// volatility bounds the random component of a single step (2%).
	volatility = 0.02
	trendStep  = 0.0002
	maxTrend   = 0.001
)

type symbolState struct {
	base  float64
	trend float64
	open  float64
}

// PriceGenerator produces random-walk quotes for demo trading.
// It is safe for concurrent use.
type PriceGenerator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	catalog *domain.InstrumentCatalog
	clock   domain.Clock
	states  map[string]*symbolState
}

// NewPriceGenerator creates a generator whose sequence is fully determined by seed
func NewPriceGenerator(seed int64, catalog *domain.InstrumentCatalog, clock domain.Clock) *PriceGenerator {
	return &PriceGenerator{
		rng:     rand.New(rand.NewSource(seed)),
		catalog: catalog,
		clock:   clock,
		states:  make(map[string]*symbolState),
	}
}

// Next advances the walk for symbol one step and returns the new quote
func (g *PriceGenerator) Next(symbol string) domain.PriceQuote {
	inst := g.catalog.Lookup(symbol)

	g.mu.Lock()
	st := g.stateLocked(inst)

	st.trend += (g.rng.Float64() - 0.5) * trendStep
	st.trend = math.Max(-maxTrend, math.Min(maxTrend, st.trend))

	move := (g.rng.Float64()-0.5)*volatility + st.trend
	next := st.base * (1 + move)
	if next > 0 {
		st.base = next
	}
	base, open := st.base, st.open
	g.mu.Unlock()

	places := pricePlaces(inst)
	price := decimal.NewFromFloat(base).Round(places)
	openPrice := decimal.NewFromFloat(open).Round(places)

	q := domain.NewQuote(inst.Symbol, price, inst.AssetClass, g.clock.Now())
	q.Change = price.Sub(openPrice)
	if openPrice.IsPositive() {
		q.ChangePercent = q.Change.Div(openPrice).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return q
}

// SetBase resets a symbol's walk to start from price
func (g *PriceGenerator) SetBase(symbol string, price decimal.Decimal) {
	inst := g.catalog.Lookup(symbol)
	f := price.InexactFloat64()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[inst.Symbol] = &symbolState{base: f, open: f}
}

// Quote implements domain.PriceSource
func (g *PriceGenerator) Quote(_ context.Context, symbol string) (domain.PriceQuote, error) {
	return g.Next(symbol), nil
}

// Float64 draws from the shared random source
func (g *PriceGenerator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *PriceGenerator) stateLocked(inst domain.Instrument) *symbolState {
	st, ok := g.states[inst.Symbol]
	if !ok {
		base := inst.BasePrice.InexactFloat64()
		if base <= 0 {
			base = defaultBasePrice(inst.AssetClass)
		}
		st = &symbolState{base: base, open: base}
		g.states[inst.Symbol] = st
	}
	return st
}

func defaultBasePrice(class domain.AssetClass) float64 {
	switch class {
	case domain.AssetForex:
		return 1.0
	case domain.AssetCrypto:
		return 1000
	case domain.AssetCommodities:
		return 50
	default:
		return 100
	}
}

// pricePlaces is 5 for forex (3 for JPY pairs) and 2 for everything else
func pricePlaces(inst domain.Instrument) int32 {
	if inst.AssetClass != domain.AssetForex {
		return 2
	}
	if strings.Contains(inst.Symbol, "JPY") {
		return 3
	}
	return 5
}

// RandomSlippage returns a SlippageFunc drawing uniformly from [0, MaxSlippage]
func RandomSlippage(g *PriceGenerator) domain.SlippageFunc {
	return func() decimal.Decimal {
		return domain.MaxSlippage.Mul(decimal.NewFromFloat(g.Float64())).Round(8)
	}
}
