package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Event 标识告警类型。
type Event string

const (
	EventWinnerAdopted Event = "winner_adopted"
	EventStaleQuotes   Event = "stale_quotes"
)

// StaleQuote 描述一条过期的汇率报价。
type StaleQuote struct {
	Base      string
	UpdatedAt time.Time
	Age       time.Duration
}

// Notification 封装告警上下文。
type Notification struct {
	Event          Event
	At             time.Time
	ItemID         string
	Region         string
	Variant        string
	Currency       string
	PriceMinor     int64
	ConversionRate decimal.Decimal
	Deactivated    int64
	MaxAge         time.Duration
	Stale          []StaleQuote
	Channels       []string
	AdditionalMsg  string
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().
		Str("event", string(note.Event)).
		Str("item_id", note.ItemID).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("告警已发送 (Telegram)")
	return nil
}

// LogNotifier 只写日志, 用于未配置推送渠道的环境。
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier 构造日志告警器。
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify 将告警正文写入日志。
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("event", string(note.Event)).
		Str("item_id", note.ItemID).
		Str("region", note.Region).
		Msg(RenderMessage(note))
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	switch note.Event {
	case EventWinnerAdopted:
		builder.WriteString("[Pricing] Price test winner adopted\n")
		builder.WriteString(fmt.Sprintf("Item: %s (%s)\n", note.ItemID, note.Region))
		builder.WriteString(fmt.Sprintf("Variant: %s\n", note.Variant))
		builder.WriteString(fmt.Sprintf("Price: %s %s\n", formatMinor(note.PriceMinor), note.Currency))
		builder.WriteString(fmt.Sprintf("Conversion: %s%%\n", note.ConversionRate.Mul(decimal.NewFromInt(100)).StringFixed(2)))
		builder.WriteString(fmt.Sprintf("Deactivated: %d\n", note.Deactivated))
	case EventStaleQuotes:
		builder.WriteString("[Pricing] Stale FX quotes\n")
		builder.WriteString(fmt.Sprintf("Max age: %s\n", note.MaxAge))
		for _, q := range note.Stale {
			builder.WriteString(fmt.Sprintf("%s: updated %s UTC (age %s)\n",
				q.Base, q.UpdatedAt.UTC().Format(time.RFC3339), q.Age.Truncate(time.Second)))
		}
	default:
		builder.WriteString(fmt.Sprintf("[Pricing] %s\n", note.Event))
	}
	if !note.At.IsZero() {
		builder.WriteString(fmt.Sprintf("At: %s UTC\n", note.At.UTC().Format(time.RFC3339)))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

func formatMinor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
