package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/domain/subscription"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers the operator commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	guard := func(command string, next func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")
			if c.Sender().ID != adminTelegramID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			}
			return next(c, handlerLogger)
		}
	}

	b.Handle("/run", guard("/run", func(c telebot.Context, log *logrus.Entry) error {
		_ = c.Send("Running notification cycle...")
		res, err := adminService.TriggerRun(ctx, c.Sender().ID)
		if err != nil {
			return replyError(c, log, err, "Failed to run notification cycle")
		}
		log.WithFields(logrus.Fields{
			"detected": res.Detection.Sent,
			"sent":     res.Sending.Sent,
		}).Info("Manual run finished")
		return c.Send(FormatCycleResult(res))
	}))

	b.Handle("/pending", guard("/pending", func(c telebot.Context, log *logrus.Entry) error {
		n, err := adminService.PendingCount(ctx, c.Sender().ID)
		if err != nil {
			return replyError(c, log, err, "Failed to count pending notifications")
		}
		return c.Send(fmt.Sprintf("%d notification(s) waiting for delivery.", n))
	}))

	b.Handle("/next", guard("/next", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /next <subscription id>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.WithField("arg", args[0]).Warn("Invalid subscription id")
			return c.Send("Error: subscription id must be a number.")
		}
		outlook, err := adminService.DescribeSubscription(ctx, c.Sender().ID, id)
		if err != nil {
			return replyError(c, log.WithField("subscription_id", id), err, "Failed to describe subscription")
		}
		return c.Send(FormatOutlook(outlook))
	}))
}

func replyError(c telebot.Context, log *logrus.Entry, err error, msg string) error {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Admin not authorized (service level)")
		return c.Send(unauthorizedReply)
	case errors.Is(err, subscription.ErrNotFound):
		logWithError.Warn("Subscription not found")
		return c.Send("Subscription not found.")
	case errors.Is(err, app.ErrNoUpcomingDate):
		return c.Send(fmt.Sprintf("This subscription does not renew (%s).", subscription.CycleOneTime))
	default:
		logWithError.Error(msg)
		return c.Send(fmt.Sprintf("%s: %s", msg, err.Error()))
	}
}
