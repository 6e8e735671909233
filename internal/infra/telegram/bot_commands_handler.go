// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands registers /start and /help. The bot only serves the operator;
// everyone else gets a short notice.
func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			return c.Send("Hi " + c.Sender().FirstName + ", the subscription notifier is running. Use /help for commands.")
		}
		logCtx.Info("User is unknown")
		return c.Send("This bot is for the subscription tracker operators only.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			return c.Send("No commands are available to you.")
		}
		return c.Send(HelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// HelpText lists the operator commands.
func HelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Operator commands:\n\n")
	helpText.WriteString("`/run`\n - Detect upcoming renewals and trial ends, then send pending emails.\n\n")
	helpText.WriteString("`/pending`\n - Show how many notifications are waiting for delivery.\n\n")
	helpText.WriteString("`/next <subscription id>`\n - Show when a subscription renews or its trial ends.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
