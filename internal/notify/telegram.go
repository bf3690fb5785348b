package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig enables the optional secondary channel: a send-only
// bot posting fired reminders to one chat.
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

type TelegramSender struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram.token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram.chat_id is required")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: bot, chat: tele.ChatID(cfg.ChatID)}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, n Notification) error {
	_ = ctx // telebot bounds the call via its HTTP client timeout
	text := strings.TrimSpace(n.Body)
	if text == "" {
		return nil
	}
	_, err := s.bot.Send(s.chat, priorityPrefix(n.Priority)+text)
	return err
}

func priorityPrefix(p int) string {
	switch {
	case p >= 5:
		return "🚨 "
	case p >= 4:
		return "⚠️ "
	default:
		return "⏰ "
	}
}
