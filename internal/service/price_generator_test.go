package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"tradeledger/internal/domain"
	"tradeledger/internal/utils"
)

var testStart = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func testCatalog() *domain.InstrumentCatalog {
	return domain.NewInstrumentCatalog([]domain.Instrument{
		{Symbol: "EURUSD", AssetClass: domain.AssetForex, BasePrice: decimal.RequireFromString("1.085"),
			MinPrice: decimal.RequireFromString("1"), MaxPrice: decimal.RequireFromString("1.5")},
		{Symbol: "USDJPY", AssetClass: domain.AssetForex, BasePrice: decimal.RequireFromString("150.2")},
		{Symbol: "BTCUSD", AssetClass: domain.AssetCrypto, BasePrice: decimal.RequireFromString("65000")},
	})
}

func TestPriceGenerator_SameSeedSameSequence(t *testing.T) {
	clock := utils.NewManualClock(testStart)
	a := NewPriceGenerator(42, testCatalog(), clock)
	b := NewPriceGenerator(42, testCatalog(), clock)

	for i := 0; i < 50; i++ {
		qa, qb := a.Next("EURUSD"), b.Next("EURUSD")
		require.True(t, qa.Price.Equal(qb.Price), "step %d: %s != %s", i, qa.Price, qb.Price)
	}
}

func TestPriceGenerator_QuoteShape(t *testing.T) {
	gen := NewPriceGenerator(7, testCatalog(), utils.NewManualClock(testStart))

	q := gen.Next("eur/usd")
	assert.Equal(t, "EURUSD", q.Symbol)
	assert.Equal(t, testStart, q.Timestamp)
	assert.True(t, q.Bid.LessThan(q.Price))
	assert.True(t, q.Ask.GreaterThan(q.Price))
	assert.LessOrEqual(t, -q.Price.Exponent(), int32(5))

	jpy := gen.Next("USDJPY")
	assert.LessOrEqual(t, -jpy.Price.Exponent(), int32(3))

	btc := gen.Next("BTCUSD")
	assert.LessOrEqual(t, -btc.Price.Exponent(), int32(2))
}

func TestPriceGenerator_ChangeIsRelativeToOpen(t *testing.T) {
	gen := NewPriceGenerator(3, testCatalog(), utils.NewManualClock(testStart))
	gen.SetBase("BTCUSD", decimal.NewFromInt(50000))

	var q domain.PriceQuote
	for i := 0; i < 10; i++ {
		q = gen.Next("BTCUSD")
	}
	assert.True(t, q.Change.Equal(q.Price.Sub(decimal.NewFromInt(50000))), q.Change.String())
	want := q.Change.Div(decimal.NewFromInt(50000)).Mul(decimal.NewFromInt(100)).Round(4)
	assert.True(t, q.ChangePercent.Equal(want))
}

func TestPriceGenerator_ConcurrentUse(t *testing.T) {
	gen := NewPriceGenerator(1, testCatalog(), utils.NewManualClock(testStart))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q, err := gen.Quote(context.Background(), "EURUSD")
				assert.NoError(t, err)
				assert.True(t, q.Price.IsPositive())
			}
		}()
	}
	wg.Wait()
}

func TestProperty_GeneratorStepsStayBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		gen := NewPriceGenerator(seed, testCatalog(), utils.NewManualClock(testStart))

		prev := gen.Next("BTCUSD").Price
		for i := 0; i < steps; i++ {
			q := gen.Next("BTCUSD")
			if !q.Price.IsPositive() {
				t.Fatalf("non-positive price %s", q.Price)
			}
			// one step moves at most volatility/2 + maxTrend, plus rounding
			ratio := q.Price.Div(prev).Sub(decimal.NewFromInt(1)).Abs()
			if ratio.GreaterThan(decimal.RequireFromString("0.0111")) {
				t.Fatalf("step %d moved %s", i, ratio)
			}
			prev = q.Price
		}
	})
}

func TestRandomSlippageWithinBounds(t *testing.T) {
	gen := NewPriceGenerator(99, testCatalog(), utils.NewManualClock(testStart))
	slip := RandomSlippage(gen)

	for i := 0; i < 1000; i++ {
		s := slip()
		require.False(t, s.IsNegative())
		require.True(t, s.LessThanOrEqual(domain.MaxSlippage), s.String())
	}
}

func TestMockPriceSource_PinAndOutage(t *testing.T) {
	clock := utils.NewManualClock(testStart)
	src := NewMockPriceSource(NewPriceGenerator(5, testCatalog(), clock), clock)
	ctx := context.Background()

	src.SetPrice("eurusd", decimal.RequireFromString("1.0895"))
	q, err := src.Quote(ctx, "EURUSD")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("1.0895")))
	assert.True(t, q.Bid.LessThan(q.Price))

	src.SetUnavailable("EURUSD", true)
	_, err = src.Quote(ctx, "EURUSD")
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	src.SetUnavailable("EURUSD", false)
	src.Unpin("EURUSD")
	q, err = src.Quote(ctx, "EURUSD")
	require.NoError(t, err)
	assert.True(t, q.Price.IsPositive())
}
