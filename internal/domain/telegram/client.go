package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for sending messages to the operator chat.
// This keeps the application logic independent of the bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
