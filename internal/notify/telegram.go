package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/utils"
)

// Telegram sends escalations via the Telegram bot API. Sends are rate
// limited globally so a burst of escalations cannot trip the API.
type Telegram struct {
	BotToken string
	ChatID   int64
	Logger   *logging.Logger

	limiter *rate.Limiter
}

func NewTelegram(botToken string, chatID int64, ratePerSecond int, logger *logging.Logger) *Telegram {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		Logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
	}
}

func (t *Telegram) Notify(ctx context.Context, target models.Target, rec models.EscalationRecord) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	subject, body := message(target, rec)
	text := fmt.Sprintf("*%s*\n%s", subject, body)

	return utils.Retry(ctx, t.Logger, 3, time.Second, func() error {
		b, err := bot.New(t.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID:    t.ChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", t.ChatID, err)
		}
		return nil
	})
}
