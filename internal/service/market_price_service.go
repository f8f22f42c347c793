package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
)

// feedQuote is the price feed's JSON body
type feedQuote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Timestamp     string          `json:"timestamp"`
	Error         bool            `json:"error"`
	Message       string          `json:"message"`
}

// HTTPPriceSource fetches live quotes from the market data proxy
type HTTPPriceSource struct {
	httpClient *http.Client
	baseURL    string
	catalog    *domain.InstrumentCatalog
	clock      domain.Clock
	logger     *zap.Logger
}

// NewHTTPPriceSource creates a new HTTPPriceSource
func NewHTTPPriceSource(baseURL string, catalog *domain.InstrumentCatalog, clock domain.Clock, logger *zap.Logger) *HTTPPriceSource {
	return &HTTPPriceSource{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		catalog: catalog,
		clock:   clock,
		logger:  logger,
	}
}

// WithTimeout sets the per-request timeout of the feed client
func (s *HTTPPriceSource) WithTimeout(d time.Duration) *HTTPPriceSource {
	if d > 0 {
		s.httpClient.Timeout = d
	}
	return s
}

// Quote fetches the current quote for a symbol. Any transport failure, feed
// error flag or out-of-range price is reported as ErrPriceUnavailable.
func (s *HTTPPriceSource) Quote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	inst := s.catalog.Lookup(symbol)

	endpoint := fmt.Sprintf("%s/quote?symbol=%s", s.baseURL, url.QueryEscape(inst.Symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("failed to fetch quote for %s: %v: %w", inst.Symbol, err, domain.ErrPriceUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("failed to read response body: %v: %w", err, domain.ErrPriceUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceQuote{}, fmt.Errorf("price feed error: status=%d, body=%s: %w", resp.StatusCode, string(body), domain.ErrPriceUnavailable)
	}

	var fq feedQuote
	if err := json.Unmarshal(body, &fq); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("failed to unmarshal quote: %v: %w", err, domain.ErrPriceUnavailable)
	}
	if fq.Error {
		return domain.PriceQuote{}, fmt.Errorf("price feed rejected %s: %s: %w", inst.Symbol, fq.Message, domain.ErrPriceUnavailable)
	}
	if !inst.InRange(fq.Price) {
		s.logger.Warn("feed price outside instrument range",
			zap.String("symbol", inst.Symbol),
			zap.String("price", fq.Price.String()),
			zap.String("min", inst.MinPrice.String()),
			zap.String("max", inst.MaxPrice.String()),
		)
		return domain.PriceQuote{}, fmt.Errorf("price %s out of range for %s: %w", fq.Price, inst.Symbol, domain.ErrPriceUnavailable)
	}

	at := s.clock.Now()
	if ts, err := time.Parse(time.RFC3339, fq.Timestamp); err == nil {
		at = ts
	}

	// feed bid/ask are used only when both pass the same range guard as the
	// price; otherwise the class spread table applies
	q := domain.NewQuote(inst.Symbol, fq.Price, inst.AssetClass, at)
	switch {
	case fq.Bid.IsZero() && fq.Ask.IsZero():
	case inst.InRange(fq.Bid) && inst.InRange(fq.Ask) && fq.Ask.GreaterThanOrEqual(fq.Bid):
		q.Bid = fq.Bid
		q.Ask = fq.Ask
		q.Spread = fq.Ask.Sub(fq.Bid)
	default:
		s.logger.Warn("feed bid/ask rejected, using spread table",
			zap.String("symbol", inst.Symbol),
			zap.String("bid", fq.Bid.String()),
			zap.String("ask", fq.Ask.String()),
		)
	}
	q.Change = fq.Change
	q.ChangePercent = fq.ChangePercent
	return q, nil
}
