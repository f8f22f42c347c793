package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tradeledger/internal/domain"
)

const defaultAPIBase = "https://api.telegram.org"

// NotificationService sends auto-close alerts through the Telegram Bot API
type NotificationService struct {
	botToken   string
	chatID     string
	enabled    bool
	apiBase    string
	location   *time.Location
	httpClient *http.Client
}

var _ domain.Notifier = (*NotificationService)(nil)

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Option configures a NotificationService
type Option func(*NotificationService)

// WithAPIBase points the service at a different Bot API host
func WithAPIBase(base string) Option {
	return func(s *NotificationService) { s.apiBase = base }
}

// WithLocation sets the timezone used in message timestamps
func WithLocation(loc *time.Location) Option {
	return func(s *NotificationService) { s.location = loc }
}

// NewNotificationService creates a notifier. Without a token and chat id
// every send is a no-op.
func NewNotificationService(botToken, chatID string, opts ...Option) *NotificationService {
	s := &NotificationService{
		botToken: botToken,
		chatID:   chatID,
		enabled:  botToken != "" && chatID != "",
		apiBase:  defaultAPIBase,
		location: time.UTC,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether messages are actually sent
func (s *NotificationService) Enabled() bool {
	return s.enabled
}

// NotifyAutoClose reports a trade settled by stop loss or take profit
func (s *NotificationService) NotifyAutoClose(ctx context.Context, t *domain.Trade) error {
	if !s.enabled {
		return nil
	}
	return s.sendMessage(ctx, FormatAutoClose(t, s.location))
}

// FormatAutoClose renders the alert text for a settled trade
func FormatAutoClose(t *domain.Trade, loc *time.Location) string {
	reason := domain.ReasonManualClose
	if t.AutoCloseReason != nil {
		reason = *t.AutoCloseReason
	}

	statusEmoji := "✅"
	if reason == domain.ReasonStopLoss {
		statusEmoji = "🛑"
	}
	sideEmoji := "🟢"
	if !t.IsLong() {
		sideEmoji = "🔴"
	}

	exit, net := "-", "-"
	if t.ExitPrice != nil {
		exit = t.ExitPrice.String()
	}
	if t.NetPnL != nil {
		net = t.NetPnL.StringFixed(2)
	}
	closedAt := "-"
	if t.ClosedAt != nil {
		closedAt = t.ClosedAt.In(loc).Format("2006-01-02 15:04:05")
	}

	return fmt.Sprintf(
		"%s *%s*\n\n"+
			"%s *%s %s*\n"+
			"━━━━━━━━━━━━━━━━━\n"+
			"🔵 Entry: `%s`\n"+
			"🏁 Exit: `%s`\n"+
			"📦 Units: `%s`\n"+
			"💰 Net P&L: `%s`\n"+
			"🕒 Closed: `%s`",
		statusEmoji,
		reason,
		sideEmoji,
		t.PositionType,
		t.Symbol,
		t.EntryPrice.String(),
		exit,
		t.Units.String(),
		net,
		closedAt,
	)
}

// sendMessage sends a message using the Bot API
func (s *NotificationService) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	payload := telegramMessage{
		ChatID:    s.chatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
