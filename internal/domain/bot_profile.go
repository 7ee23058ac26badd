package domain

import (
	"fmt"
	"time"

	"github.com/ibras0696/m-django-work/internal/idgen"
)

// BotProfile links a user to the chat account the bot talks to.
type BotProfile struct {
	UserID         idgen.ID  `json:"user_id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	ChatID         int64     `json:"chat_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// BotUsername is the username given to accounts created through the bot.
func BotUsername(telegramUserID int64) string {
	return fmt.Sprintf("tg_%d", telegramUserID)
}
