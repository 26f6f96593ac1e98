package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/globalsync/internal/storage"
)

// Sender is the part of the Telegram API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers reminders to the chat saved in the user's profile.
type TelegramNotifier struct {
	api      Sender
	profiles storage.ProfileStorage
	logger   *zap.Logger
}

func NewTelegramNotifier(api Sender, profiles storage.ProfileStorage, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{api: api, profiles: profiles, logger: logger}
}

func (n *TelegramNotifier) Notify(ctx context.Context, userID int64, title, body string) error {
	// Private chats share the user's ID.
	chatID := userID
	profile, err := n.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil && profile.ChatID != 0:
		chatID = profile.ChatID
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("load profile: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("*%s*\n%s", escapeMarkdown(title), escapeMarkdown(body)))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	n.logger.Info("Reminder delivered", zap.Int64("user_id", userID), zap.Int64("chat_id", chatID))
	return nil
}
