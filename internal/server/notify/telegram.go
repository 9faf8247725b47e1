package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts chat messages to one chat as HTML.
type Telegram struct {
	api    telegramAPI
	chatID int64
}

// NewTelegram authenticates the bot token against the Bot API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{api: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Post sends msg. The Bot API client is not context aware, so ctx is only
// checked before the call.
func (t *Telegram) Post(ctx context.Context, msg ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(t.chatID, formatTelegram(msg))
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true

	if _, err := t.api.Send(out); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatTelegram(msg ChatMessage) string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(msg.Title) + "</b>")
	if msg.Text != "" {
		b.WriteString("\n" + html.EscapeString(msg.Text))
	}
	for _, f := range msg.Fields {
		b.WriteString("\n<b>" + html.EscapeString(f.Name) + ":</b> " + html.EscapeString(f.Value))
	}
	return b.String()
}
