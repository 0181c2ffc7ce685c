package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"advent-calendar/internal/infra/metrics"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminChat отправляет уведомления в чат администраторов.
type AdminChat struct {
	bot    botSender
	chatID int64
	log    zerolog.Logger
}

// NewAdminChat создаёт отправителя уведомлений.
func NewAdminChat(bot botSender, chatID int64, log zerolog.Logger) *AdminChat {
	return &AdminChat{bot: bot, chatID: chatID, log: log}
}

// SendText отправляет текст, при необходимости несколькими сообщениями.
func (a *AdminChat) SendText(ctx context.Context, text string) error {
	for i, part := range SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(a.chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := a.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "send_message", "admin_chat", start, err)
		if err != nil {
			return fmt.Errorf("telegram: часть %d: %w", i+1, err)
		}
	}
	return nil
}
