package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradeledger/internal/journal"
)

type stubTicks struct {
	calls int
	err   error
}

func (s *stubTicks) RunNow(context.Context) error {
	s.calls++
	return s.err
}

type stubJournal struct {
	summary journal.Summary
}

func (s stubJournal) Summarize(context.Context, uuid.UUID) (journal.Summary, error) {
	return s.summary, nil
}

func get(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	r := NewRouter(Config{Checks: map[string]CheckFunc{"postgres": ok}, Logger: zap.NewNop()})
	rec, out := get(t, r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", out["status"])

	r = NewRouter(Config{Checks: map[string]CheckFunc{"postgres": ok, "redis": down}, Logger: zap.NewNop()})
	rec, out = get(t, r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", out["status"])
	deps := out["dependencies"].(map[string]interface{})
	assert.Equal(t, "unhealthy", deps["redis"])
	assert.Equal(t, "healthy", deps["postgres"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewRouter(Config{Logger: zap.NewNop()})
	rec, _ := get(t, r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunTick(t *testing.T) {
	ticks := &stubTicks{}
	r := NewRouter(Config{Ticks: ticks, Logger: zap.NewNop()})

	rec, out := get(t, r, http.MethodPost, "/tick/run")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, 1, ticks.calls)

	ticks.err = errors.New("live tick: boom")
	rec, _ = get(t, r, http.MethodPost, "/tick/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestJournalSummary(t *testing.T) {
	j := stubJournal{summary: journal.Summary{
		Settlements: 3,
		Wins:        2,
		NetPnL:      decimal.RequireFromString("120.5"),
		Commission:  decimal.RequireFromString("9"),
	}}
	r := NewRouter(Config{Journal: j, Logger: zap.NewNop()})

	rec, out := get(t, r, http.MethodGet, "/journal/"+uuid.NewString())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120.50", out["net_pnl"])
	assert.EqualValues(t, 3, out["settlements"])
	assert.NotContains(t, out, "last_equity")

	rec, _ = get(t, r, http.MethodGet, "/journal/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionalRoutesAbsent(t *testing.T) {
	r := NewRouter(Config{Logger: zap.NewNop()})
	rec, _ := get(t, r, http.MethodPost, "/tick/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
