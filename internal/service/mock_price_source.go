package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// MockPriceSource serves demo quotes from a PriceGenerator. Individual
// symbols can be pinned to a fixed price or made unavailable.
type MockPriceSource struct {
	gen   *PriceGenerator
	clock domain.Clock

	mu     sync.RWMutex
	pinned map[string]decimal.Decimal
	down   map[string]bool
}

// NewMockPriceSource creates a MockPriceSource
func NewMockPriceSource(gen *PriceGenerator, clock domain.Clock) *MockPriceSource {
	return &MockPriceSource{
		gen:    gen,
		clock:  clock,
		pinned: make(map[string]decimal.Decimal),
		down:   make(map[string]bool),
	}
}

// Quote implements domain.PriceSource
func (m *MockPriceSource) Quote(_ context.Context, symbol string) (domain.PriceQuote, error) {
	inst := m.gen.catalog.Lookup(symbol)

	m.mu.RLock()
	price, pinned := m.pinned[inst.Symbol]
	unavailable := m.down[inst.Symbol]
	m.mu.RUnlock()

	if unavailable {
		return domain.PriceQuote{}, fmt.Errorf("%s: %w", inst.Symbol, domain.ErrPriceUnavailable)
	}
	if pinned {
		return domain.NewQuote(inst.Symbol, price, inst.AssetClass, m.clock.Now()), nil
	}
	return m.gen.Next(inst.Symbol), nil
}

// SetPrice pins symbol to price until Unpin is called
func (m *MockPriceSource) SetPrice(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned[domain.NormalizeSymbol(symbol)] = price
}

// Unpin returns symbol to the random walk
func (m *MockPriceSource) Unpin(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pinned, domain.NormalizeSymbol(symbol))
}

// SetUnavailable makes quotes for symbol fail (or succeed again)
func (m *MockPriceSource) SetUnavailable(symbol string, unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down[domain.NormalizeSymbol(symbol)] = unavailable
}
