package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Telegram posts the notification to a chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegram(logger *zap.Logger, token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create telegram bot")
	}
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: logger.Named("telegram"),
	}, nil
}

func (t *Telegram) Send(ctx context.Context, message Message) error {
	text := fmt.Sprintf("%s\nDuration: %s", message.Subject(), message.HumanDuration())
	if message.Detail != "" {
		text += "\n" + message.Detail
	}
	if message.LogsURL != "" {
		text += "\nLogs: " + message.LogsURL
	}

	t.logger.Info("Sending telegram message", zap.Int64("chat_id", t.chatID))
	_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
	return errors.Wrap(err, "Failed to send telegram message")
}
