package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"task-timeout-service/internal/config"
	"task-timeout-service/internal/dispatch"
	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/models"
	"task-timeout-service/internal/utils"
)

// TelegramSender is the optional secondary channel for recipients that
// registered a chat with the bot.
type TelegramSender struct {
	token   string
	limiter *rate.Limiter
	logger  *logging.Logger
}

func NewTelegramSender(cfg config.Config, logger *logging.Logger) (*TelegramSender, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram transport not configured: TELEGRAM_BOT_TOKEN is empty")
	}
	return &TelegramSender{
		token:   cfg.Telegram.BotToken,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Telegram.RateLimit)), cfg.Telegram.RateLimit),
		logger:  logger,
	}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

func (t *TelegramSender) Send(ctx context.Context, rec models.Recipient, msg dispatch.Message) error {
	if rec.TelegramChatID == 0 {
		return dispatch.ErrNoDestination
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait failed: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body)

	return utils.Retry(t.logger, 3, time.Second, func() error {
		b, err := bot.New(t.token)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}

		params := &bot.SendMessageParams{
			ChatID:    rec.TelegramChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", rec.TelegramChatID, err)
		}
		return nil
	})
}
