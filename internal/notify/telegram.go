package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger é a parte do *tgbotapi.BotAPI usada para enviar mensagens
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender envia notificações como mensagens HTML do Telegram
type TelegramSender struct {
	bot Messenger
}

// NewTelegramSender cria um Sender sobre o bot informado
func NewTelegramSender(bot Messenger) *TelegramSender {
	return &TelegramSender{bot: bot}
}

// Send envia a mensagem ao chat do usuário
func (s *TelegramSender) Send(ctx context.Context, receiverID int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(receiverID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrRecipientBlocked, apiErr.Message)
		}
		return fmt.Errorf("send message to %d: %w", receiverID, err)
	}
	return nil
}
