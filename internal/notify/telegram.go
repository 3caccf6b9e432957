package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Trader/models"
)

// Notifier pushes trade events to a chat. A nil *Notifier is valid and
// does nothing, so callers never need to branch on whether notifications
// are configured.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram creates a Telegram notifier, or nil when token/chat are
// not configured. Send failures are logged and swallowed: a missed
// notification must never block or fail the trading loop.
func NewTelegram(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	return &Notifier{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "notifier").Logger(),
	}, nil
}

// PositionOpened announces a filled buy.
func (n *Notifier) PositionOpened(pos models.Position, signal models.AnomalySignal) {
	n.send(fmt.Sprintf(
		"📈 Opened %s: %d @ $%.2f (severity %.2f)\nStop: $%.2f",
		pos.Symbol, pos.Quantity, pos.EntryPrice, signal.Severity, pos.StopLossPrice,
	))
}

// PositionClosed announces a filled sell with its realized outcome.
func (n *Notifier) PositionClosed(trade models.TradeRecord) {
	emoji := "🟢"
	if !trade.Win() {
		emoji = "🔴"
	}
	n.send(fmt.Sprintf(
		"%s Closed %s: %d @ $%.2f (%+.2f%%, %s)",
		emoji, trade.Symbol, trade.Quantity, trade.ExitPrice, trade.ProfitPct, trade.Reason,
	))
}

func (n *Notifier) send(text string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send notification")
	}
}
