package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
	"tradeledger/internal/middleware"
	"tradeledger/internal/repository"
	"tradeledger/internal/service"
	"tradeledger/internal/usecase"
	"tradeledger/internal/utils"
)

const testSecret = "handler-secret"

type testAPI struct {
	e      *echo.Echo
	prices *service.MockPriceSource
	demo   *repository.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	catalog := domain.NewInstrumentCatalog([]domain.Instrument{
		{Symbol: "AUDUSD", AssetClass: domain.AssetForex, BasePrice: decimal.RequireFromString("0.65")},
		{Symbol: "AAPL", AssetClass: domain.AssetEquities, BasePrice: decimal.RequireFromString("190")},
	})
	clock := utils.NewManualClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	prices := service.NewMockPriceSource(service.NewPriceGenerator(3, catalog, clock), clock)
	logger := zap.NewNop()

	newSvc := func(mode domain.Mode, store *repository.MemoryStore) *usecase.TradingService {
		return usecase.NewTradingService(usecase.TradingServiceDeps{
			Mode:            mode,
			Ledger:          store,
			Prices:          prices,
			Catalog:         catalog,
			Clock:           clock,
			StartingBalance: decimal.NewFromInt(100000),
			Logger:          logger,
		})
	}

	demo := repository.NewMemoryStore()
	live := repository.NewMemoryStore()

	e := echo.New()
	SetupRoutes(e, &RouterConfig{
		Live:        NewTradingHandler(newSvc(domain.ModeLive, live), logger),
		Demo:        NewTradingHandler(newSvc(domain.ModeDemo, demo), logger),
		Leaderboard: NewLeaderboardHandler(usecase.NewLeaderboardService(demo, demo.Repositories().Portfolios, nil, logger), logger),
		JWTSecret:   testSecret,
		Logger:      logger,
	})
	return &testAPI{e: e, prices: prices, demo: demo}
}

func (a *testAPI) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := middleware.SignToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func dataField(t *testing.T, out map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	data, ok := out["data"].(map[string]interface{})
	require.True(t, ok, "missing data: %v", out)
	s, ok := data[key].(string)
	require.True(t, ok, "missing %s: %v", key, data)
	return decimal.RequireFromString(s)
}

func errorCode(out map[string]interface{}) string {
	body, _ := out["error"].(map[string]interface{})
	code, _ := body["code"].(string)
	return code
}

const audLimitOrder = `{"symbol":"audusd","position_type":"long","order_type":"limit",
	"limit_price":"0.65","quantity":"1","leverage":"10","margin_required":"6500"}`

func TestTradingRoutes_OpenAndClose(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, uuid.New())
	a.prices.SetPrice("AUDUSD", decimal.RequireFromString("0.65"))

	rec, _ := a.do(t, http.MethodPost, "/api/demo/portfolio", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := a.do(t, http.MethodPost, "/api/demo/trades", token, audLimitOrder)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decimal.NewFromInt(6500).Equal(dataField(t, out, "margin_used")))
	tradeID := out["data"].(map[string]interface{})["id"].(string)

	rec, out = a.do(t, http.MethodGet, "/api/demo/portfolio", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(93435).Equal(dataField(t, out, "cash_balance")))

	rec, out = a.do(t, http.MethodGet, "/api/demo/trades?status=open", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["data"], 1)

	// long exits at the bid: 0.66 less half of the 0.005% forex spread
	a.prices.SetPrice("AUDUSD", decimal.RequireFromString("0.66"))
	rec, out = a.do(t, http.MethodPost, "/api/demo/trades/"+tradeID+"/close", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decimal.RequireFromString("0.6599835").Equal(dataField(t, out, "exit_price")))
	assert.True(t, decimal.RequireFromString("932.35165").Equal(dataField(t, out, "net_pnl")))

	rec, out = a.do(t, http.MethodPost, "/api/demo/trades/"+tradeID+"/close", token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeAlreadyClosed, errorCode(out))
}

func TestTradingRoutes_CloseIgnoresClientPriceAndReason(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, uuid.New())
	a.prices.SetPrice("AUDUSD", decimal.RequireFromString("0.65"))

	rec, _ := a.do(t, http.MethodPost, "/api/demo/portfolio", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out := a.do(t, http.MethodPost, "/api/demo/trades", token, audLimitOrder)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tradeID := out["data"].(map[string]interface{})["id"].(string)

	rec, out = a.do(t, http.MethodPost, "/api/demo/trades/"+tradeID+"/close", token,
		`{"exit_price":"100","reason":"Stop Loss"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	bid := decimal.RequireFromString("0.64998375")
	assert.True(t, bid.Equal(dataField(t, out, "exit_price")))
	data := out["data"].(map[string]interface{})
	assert.Equal(t, domain.ReasonManualClose, data["auto_close_reason"])

	// (bid - 0.65) * 100000 - bid * 100000 * 0.001
	net := decimal.RequireFromString("-66.623375")
	assert.True(t, net.Equal(dataField(t, out, "net_pnl")))

	rec, out = a.do(t, http.MethodGet, "/api/demo/portfolio", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(99935).Add(net).Equal(dataField(t, out, "cash_balance")))
}

func TestTradingRoutes_CloseAllRecordsManualClose(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, uuid.New())
	a.prices.SetPrice("AUDUSD", decimal.RequireFromString("0.65"))

	rec, _ := a.do(t, http.MethodPost, "/api/demo/portfolio", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/api/demo/trades", token, audLimitOrder)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, out := a.do(t, http.MethodPost, "/api/demo/trades/close-all", token, `{"reason":"Take Profit"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := out["data"].(map[string]interface{})["closed"].([]interface{})
	require.Len(t, closed, 1)
	assert.Equal(t, domain.ReasonManualClose, closed[0].(map[string]interface{})["auto_close_reason"])
}

func TestTradingRoutes_ModesAreIsolated(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, uuid.New())

	rec, _ := a.do(t, http.MethodPost, "/api/demo/portfolio", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := a.do(t, http.MethodGet, "/api/live/portfolio", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodePortfolioNotFound, errorCode(out))
}

func TestTradingRoutes_ErrorMapping(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, uuid.New())
	rec, _ := a.do(t, http.MethodPost, "/api/demo/portfolio", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	a.prices.SetPrice("AUDUSD", decimal.RequireFromString("0.65"))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad side", http.MethodPost, "/api/demo/trades", `{"symbol":"AUDUSD","position_type":"up","quantity":"1"}`, http.StatusBadRequest, CodeValidation},
		{"bad filter", http.MethodGet, "/api/demo/trades?status=pending", "", http.StatusBadRequest, CodeValidation},
		{"malformed body", http.MethodPost, "/api/demo/trades", `{"symbol":`, http.StatusBadRequest, CodeValidation},
		{"insufficient balance", http.MethodPost, "/api/demo/trades", `{"symbol":"AUDUSD","position_type":"long","order_type":"limit","limit_price":"0.65","quantity":"20","leverage":"1"}`, http.StatusUnprocessableEntity, CodeInsufficientBalance},
		{"invalid trade id", http.MethodPost, "/api/demo/trades/nope/close", "", http.StatusBadRequest, CodeValidation},
		{"unknown trade", http.MethodPost, "/api/demo/trades/" + uuid.NewString() + "/cancel", "", http.StatusNotFound, CodeTradeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := a.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(out))
		})
	}
}

func TestTradingRoutes_InsufficientBalanceDetails(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, uuid.New())
	a.do(t, http.MethodPost, "/api/demo/portfolio", token, "")
	a.prices.SetPrice("AUDUSD", decimal.RequireFromString("0.65"))

	rec, out := a.do(t, http.MethodPost, "/api/demo/trades", token,
		`{"symbol":"AUDUSD","position_type":"long","order_type":"limit","limit_price":"0.65","quantity":"20","leverage":"1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	details := out["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Equal(t, "100000.00", details["available"])
}

func TestTradingRoutes_RequireAuth(t *testing.T) {
	a := newTestAPI(t)
	for _, path := range []string{"/api/demo/portfolio", "/api/live/trades"} {
		rec, _ := a.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestQuoteRoute(t *testing.T) {
	a := newTestAPI(t)
	a.prices.SetPrice("AAPL", decimal.RequireFromString("200"))

	rec, out := a.do(t, http.MethodGet, "/api/live/quotes/aapl", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decimal.NewFromInt(200).Equal(dataField(t, out, "price")))

	a.prices.SetUnavailable("AAPL", true)
	rec, out = a.do(t, http.MethodGet, "/api/live/quotes/AAPL", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodePriceUnavailable, errorCode(out))
}

func TestResetOnlyInDemo(t *testing.T) {
	a := newTestAPI(t)
	token := a.token(t, uuid.New())
	a.do(t, http.MethodPost, "/api/demo/portfolio", token, "")
	a.do(t, http.MethodPost, "/api/live/portfolio", token, "")

	rec, out := a.do(t, http.MethodPost, "/api/demo/portfolio/reset", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decimal.NewFromInt(100000).Equal(dataField(t, out, "cash_balance")))

	rec, _ = a.do(t, http.MethodPost, "/api/live/portfolio/reset", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderboardRoute(t *testing.T) {
	a := newTestAPI(t)
	league := uuid.New()
	token := a.token(t, uuid.New())
	rec, _ := a.do(t, http.MethodPost, "/api/demo/portfolio", token, `{"league_id":"`+league.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := a.do(t, http.MethodGet, "/api/leaderboard/"+league.String(), "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, out["data"], 1)

	rec, _ = a.do(t, http.MethodGet, "/api/leaderboard/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec, out := a.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", out["status"])
}
