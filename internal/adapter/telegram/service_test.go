package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain"
)

func closedTrade(reason string) *domain.Trade {
	exit := decimal.RequireFromString("1.0895")
	net := decimal.RequireFromString("-65.8945")
	closedAt := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	return &domain.Trade{
		ID:              uuid.New(),
		Symbol:          "EURUSD",
		PositionType:    domain.PositionLong,
		Units:           decimal.NewFromInt(10000),
		EntryPrice:      decimal.RequireFromString("1.095"),
		ExitPrice:       &exit,
		NetPnL:          &net,
		AutoCloseReason: &reason,
		IsClosed:        true,
		ClosedAt:        &closedAt,
	}
}

func TestFormatAutoClose(t *testing.T) {
	msg := FormatAutoClose(closedTrade(domain.ReasonStopLoss), time.UTC)
	assert.Contains(t, msg, "🛑 *Stop Loss*")
	assert.Contains(t, msg, "long EURUSD")
	assert.Contains(t, msg, "Exit: `1.0895`")
	assert.Contains(t, msg, "Net P&L: `-65.89`")
	assert.Contains(t, msg, "2026-04-01 09:30:00")
}

func TestNotifyAutoClose_Sends(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewNotificationService("TOKEN", "42", WithAPIBase(srv.URL))
	require.True(t, s.Enabled())
	require.NoError(t, s.NotifyAutoClose(context.Background(), closedTrade(domain.ReasonTakeProfit)))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "Markdown", got.ParseMode)
	assert.Contains(t, got.Text, "Take Profit")
}

func TestNotifyAutoClose_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewNotificationService("TOKEN", "42", WithAPIBase(srv.URL))
	err := s.NotifyAutoClose(context.Background(), closedTrade(domain.ReasonStopLoss))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestNotifyAutoClose_DisabledIsNoop(t *testing.T) {
	s := NewNotificationService("", "")
	assert.False(t, s.Enabled())
	assert.NoError(t, s.NotifyAutoClose(context.Background(), closedTrade(domain.ReasonStopLoss)))
}
