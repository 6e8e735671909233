package mail

import (
	"context"

	dmail "subscription_notifier/internal/domain/mail"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// LogTransport writes messages to the log instead of delivering them. It is used
// when no SMTP host is configured.
type LogTransport struct {
	logger *logrus.Entry
}

func NewLogTransport(logger *logrus.Entry) *LogTransport {
	return &LogTransport{logger: logger.WithField("component", "log_mailer")}
}

func (t *LogTransport) Send(_ context.Context, msg dmail.Message) (string, error) {
	id := "log-" + ulid.Make().String()
	t.logger.WithFields(logrus.Fields{
		"message_id": id,
		"to":         msg.To,
		"subject":    msg.Subject,
	}).Info("Email not sent, SMTP is not configured")
	t.logger.Debug(msg.Text)
	return id, nil
}

var (
	_ dmail.Transport = (*LogTransport)(nil)
	_ dmail.Transport = (*SMTPTransport)(nil)
)
