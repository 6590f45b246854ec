package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crypto-trading-controller/internal/events"
	"crypto-trading-controller/internal/logging"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal     NotificationType = "signal"
	NotifyTradeOpen  NotificationType = "trade_open"
	NotifyTradeClose NotificationType = "trade_close"
	NotifyKillSwitch NotificationType = "kill_switch"
	NotifyError      NotificationType = "error"
	NotifyInfo       NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Price     float64
	PnL       float64
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to all enabled providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SubscribeToBus wires the manager to the event bus so trade and kill-switch
// events produce notifications without the trading core knowing about
// providers. Send failures are logged, never propagated to publishers.
func (m *Manager) SubscribeToBus(bus *events.EventBus) {
	logger := logging.Component("notification")

	send := func(n *Notification) {
		if err := m.Send(n); err != nil {
			logger.Warn().Err(err).Str("type", string(n.Type)).Msg("notification delivery failed")
		}
	}

	bus.Subscribe(events.EventTradeOpened, func(e events.Event) {
		send(&Notification{
			Type:   NotifyTradeOpen,
			Title:  fmt.Sprintf("📈 Trade Opened: %v", e.Data["symbol"]),
			Message: fmt.Sprintf("%v %v\nPrice: %.4f\nQuantity: %.8f",
				e.Data["side"], e.Data["symbol"], asFloat(e.Data["entry_price"]), asFloat(e.Data["quantity"])),
			Symbol:    fmt.Sprint(e.Data["symbol"]),
			Price:     asFloat(e.Data["entry_price"]),
			Timestamp: e.Timestamp,
		})
	})

	bus.Subscribe(events.EventTradeClosed, func(e events.Event) {
		pnl := asFloat(e.Data["pnl"])
		emoji := "✅"
		if pnl < 0 {
			emoji = "❌"
		}
		send(&Notification{
			Type:  NotifyTradeClose,
			Title: fmt.Sprintf("%s Trade Closed: %v", emoji, e.Data["symbol"]),
			Message: fmt.Sprintf("Entry: %.4f → Exit: %.4f\nP&L: %.4f\nStatus: %v",
				asFloat(e.Data["entry_price"]), asFloat(e.Data["exit_price"]), pnl, e.Data["status"]),
			Symbol:    fmt.Sprint(e.Data["symbol"]),
			Price:     asFloat(e.Data["exit_price"]),
			PnL:       pnl,
			Timestamp: e.Timestamp,
		})
	})

	bus.Subscribe(events.EventKillSwitchTripped, func(e events.Event) {
		send(&Notification{
			Type:  NotifyKillSwitch,
			Title: "🛑 Kill Switch Tripped",
			Message: fmt.Sprintf("Trading halted.\nReason: %v\nConsecutive losses: %v\nTotal P&L: %.4f",
				e.Data["reason"], e.Data["consecutive_losses"], asFloat(e.Data["total_pnl"])),
			PnL:       asFloat(e.Data["total_pnl"]),
			Timestamp: e.Timestamp,
		})
	})

	bus.Subscribe(events.EventKillSwitchReset, func(e events.Event) {
		send(&Notification{
			Type:      NotifyKillSwitch,
			Title:     "🟢 Kill Switch Reset",
			Message:   "Kill switch re-armed, trading resumed.",
			Timestamp: e.Timestamp,
		})
	})

	bus.Subscribe(events.EventError, func(e events.Event) {
		send(&Notification{
			Type:      NotifyError,
			Title:     fmt.Sprintf("⚠️ Error: %v", e.Data["source"]),
			Message:   fmt.Sprintf("%v\n%v", e.Data["message"], e.Data["error"]),
			Timestamp: e.Timestamp,
		})
	})
}

// asFloat pulls a float out of untyped event data.
func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

// SendSignal sends a trading signal notification
func (m *Manager) SendSignal(symbol, side, strategyName string, price float64) error {
	emoji := "🟢"
	if side == "SELL" {
		emoji = "🔴"
	}

	return m.Send(&Notification{
		Type:      NotifySignal,
		Title:     fmt.Sprintf("%s Signal: %s", emoji, symbol),
		Message:   fmt.Sprintf("%s %s @ %.4f\nStrategy: %s", side, symbol, price, strategyName),
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"side":     side,
			"strategy": strategyName,
		},
	})
}

// SendInfo sends a plain informational notification
func (m *Manager) SendInfo(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyInfo,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Enabled  bool   `json:"enabled"`
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	Enabled    bool   `json:"enabled"`
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	if notification.Type == NotifyError || notification.Type == NotifyKillSwitch {
		color = 0xFF0000 // Red
	} else if notification.Type == NotifyTradeClose && notification.PnL < 0 {
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.4f", notification.Price), "inline": true,
			})
		}
		if notification.PnL != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "P&L", "value": fmt.Sprintf("%.4f", notification.PnL), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
