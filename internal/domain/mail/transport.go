package mail

import "context"

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Transport delivers a message and returns the provider's message id.
// This decouples the dispatcher from the concrete mail provider.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}
