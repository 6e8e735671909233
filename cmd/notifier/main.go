package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/infra/config"
	idb "subscription_notifier/internal/infra/database"
	"subscription_notifier/internal/infra/httpapi"
	"subscription_notifier/internal/infra/logger"
	"subscription_notifier/internal/infra/scheduler"
	"subscription_notifier/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Trial and renewal reminder emails for tracked subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newRunCommand(), newMigrateCommand())
	return root
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.Init(cfg)
	logger.Log.WithFields(logrus.Fields{
		"driver":      cfg.DatabaseDriver,
		"environment": cfg.Environment,
		"bot_enabled": cfg.BotEnabled(),
	}).Info("Configuration loaded")
	return cfg, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily scheduler, the HTTP trigger and the operator bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApplication(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *application) error {
	cfg := a.cfg

	var (
		bot      *telebot.Bot
		reporter app.RunReporter
	)
	if cfg.BotEnabled() {
		b, err := telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := logger.Component("telebot").WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.Error("Bot handler failed")
			},
		})
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		bot = b
		admin := app.NewAdminService(a.service, a.repos.notifs, a.repos.subs, a.clock, cfg.AdminTelegramID)
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, logger.Component("bot"))
		telegram.RegisterAdminHandlers(ctx, bot, admin, cfg.AdminTelegramID, logger.Component("bot"))
		reporter = telegram.NewReporter(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, logger.Component("reporter"))
	}

	sched, err := scheduler.NewNotificationScheduler(a.service, reporter, logger.Component("scheduler"), cfg.CronSpecNotifications, cfg.CronTimeout)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	logger.Log.WithField("next_run", sched.Next()).Info("Scheduler started")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(a.service, httpapi.Options{
			CronSecret:           cfg.CronSecret,
			AllowUnauthenticated: cfg.Environment == "development",
			Gatherer:             a.registry,
		}, logger.Component("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			logger.Log.Info("Telegram bot started")
			bot.Start()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down")
		if bot != nil {
			bot.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one notification cycle, print the result as JSON and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApplication(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CronTimeout)
			defer cancel()
			result := a.service.RunCycle(ctx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.HasProblems() {
				return errors.New("notification cycle finished with errors")
			}
			return nil
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repos, err := openRepositories(cfg)
			if err != nil {
				return err
			}
			defer repos.Close()

			// SQLite applies its schema on open.
			if repos.pg == nil {
				logger.Log.Info("SQLite schema is up to date")
				return nil
			}
			version, err := idb.Migrate(repos.pg)
			if err != nil {
				return err
			}
			logger.Log.WithField("version", version).Info("Migrations applied")
			return nil
		},
	}
}
