package main

import (
	"database/sql"
	"fmt"
	"io"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/clock"
	"subscription_notifier/internal/domain/email"
	dmail "subscription_notifier/internal/domain/mail"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"
	"subscription_notifier/internal/infra/config"
	idb "subscription_notifier/internal/infra/database"
	"subscription_notifier/internal/infra/logger"
	"subscription_notifier/internal/infra/mail"
	"subscription_notifier/internal/infra/metrics"
	"subscription_notifier/internal/infra/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// repositories groups the storage backends selected by DATABASE_DRIVER.
type repositories struct {
	subs    subscription.Repository
	notifs  notification.Repository
	emails  email.Repository
	pg      *sql.DB
	closers []io.Closer
}

func (r *repositories) Close() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close storage")
		}
	}
}

func openRepositories(cfg *config.AppConfig) (*repositories, error) {
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &repositories{
			subs:    store.Subscriptions(),
			notifs:  store.Notifications(),
			emails:  store.Emails(),
			closers: []io.Closer{store},
		}, nil
	default:
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &repositories{
			subs:    idb.NewPostgresSubscriptionRepository(db),
			notifs:  idb.NewPostgresNotificationRepository(db),
			emails:  idb.NewPostgresEmailRepository(db),
			pg:      db,
			closers: []io.Closer{db},
		}, nil
	}
}

func newTransport(cfg *config.AppConfig) dmail.Transport {
	if cfg.SMTP.Host == "" {
		logger.Log.Warn("SMTP_HOST is not set, emails will only be logged")
		return mail.NewLogTransport(logger.Component("mail"))
	}
	return mail.NewSMTPTransport(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Pass,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		Secure:   cfg.SMTP.Secure,
	}, logger.Component("mail"))
}

// application is the fully wired notification workflow.
type application struct {
	cfg      *config.AppConfig
	repos    *repositories
	clock    clock.Clock
	registry *prometheus.Registry
	service  *app.NotificationServiceImpl
}

func buildApplication(cfg *config.AppConfig) (*application, error) {
	repos, err := openRepositories(cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if repos.pg != nil {
		if _, err := idb.Migrate(repos.pg); err != nil {
			repos.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	clk := clock.New()
	base := logger.Log.WithField("service", "subscription_notifier")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.MustNewMetrics(registry)

	selector := app.NewCandidateSelector(repos.subs, clk, base, cfg.SelectorWorkers)
	materializer := app.NewMaterializer(repos.notifs, base, cfg.MaterializeWorkers)
	dispatcher := app.NewDispatcher(repos.notifs, repos.subs, repos.emails, newTransport(cfg), clk, base, cfg.AppBaseURL)

	return &application{
		cfg:      cfg,
		repos:    repos,
		clock:    clk,
		registry: registry,
		service:  app.NewNotificationServiceImpl(selector, materializer, dispatcher, clk, recorder, base),
	}, nil
}

func (a *application) Close() {
	a.repos.Close()
}
