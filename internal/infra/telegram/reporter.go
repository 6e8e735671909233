package telegram

import (
	"context"
	"fmt"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// Reporter posts run summaries with failures to the operator chat. Clean runs stay silent.
type Reporter struct {
	client telegram.Client
	chatID int64
	logger *logrus.Entry
}

func NewReporter(client telegram.Client, chatID int64, logger *logrus.Entry) *Reporter {
	return &Reporter{client: client, chatID: chatID, logger: logger.WithField("component", "telegram_reporter")}
}

func (r *Reporter) ReportRun(_ context.Context, result app.CycleResult) error {
	if !result.HasProblems() {
		return nil
	}
	text := "Notification run finished with problems\n\n" + FormatCycleResult(result)
	if err := r.client.SendMessage(r.chatID, text, nil); err != nil {
		r.logger.WithError(err).Error("Failed to send run report")
		return fmt.Errorf("send run report: %w", err)
	}
	return nil
}

var _ app.RunReporter = (*Reporter)(nil)
