package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"backoffice/internal/domain/reports"
	"backoffice/internal/platform/config"
)

// messageLimit is Telegram's cap on text message length.
const messageLimit = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts digests to a single chat.
type Notifier struct {
	bot    sender
	chatID int64
}

// New returns nil when no bot token is configured.
func New(cfg config.Config) (*Notifier, error) {
	if cfg.TelegramBotToken == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.TelegramChatID}, nil
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Notify(ctx context.Context, digest reports.Digest) error {
	msg := tgbotapi.NewMessage(n.chatID, truncate(digest.Text, messageLimit))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send digest text: %w", err)
	}
	for _, attachment := range digest.Attachments {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(n.chatID, tgbotapi.FileBytes{Name: attachment.Name, Bytes: attachment.Data})
		if _, err := n.bot.Send(doc); err != nil {
			return fmt.Errorf("send %s: %w", attachment.Name, err)
		}
	}
	return nil
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
