package notify

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// TelegramChannel sends to a fixed operator chat. Send-only: the bot never
// polls for updates.
type TelegramChannel struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegramChannel(token string, chatID int64) (*TelegramChannel, error) {
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &TelegramChannel{bot: b, chatID: chatID}, nil
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Send(ctx context.Context, n Notification) error {
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteString("\n")
	b.WriteString(n.Message)
	if n.URL != "" {
		b.WriteString("\n")
		b.WriteString(n.URL)
	}
	_, err := t.bot.Send(&tele.Chat{ID: t.chatID}, b.String(), &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	return err
}
