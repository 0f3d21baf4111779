package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLength is the Telegram limit for one text message.
const maxMessageLength = 4096

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	Token    string
	ChatID   string
	Endpoint string // defaults to tgbotapi.APIEndpoint
}

// Telegram sends notifications to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram connects the bot and validates the chat id.
func NewTelegram(config TelegramConfig) (*Telegram, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	chatID, err := strconv.ParseInt(config.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %w", err)
	}
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(config.Token, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Notify sends text, split into as many messages as the length limit needs.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	for _, part := range split(text, maxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
	}
	return nil
}

// split cuts text into chunks of at most n runes, preferring line breaks.
func split(text string, n int) []string {
	runes := []rune(text)
	var parts []string
	for len(runes) > n {
		cut := n
		for i := n - 1; i > 0; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
