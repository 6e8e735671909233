// Package httpapi exposes the notification cycle as an HTTP trigger for external cron
// services, plus health and metrics endpoints.
package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"subscription_notifier/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SecretHeader carries the shared secret on trigger requests.
const SecretHeader = "x-cron-secret"

// Options configures the router.
type Options struct {
	// CronSecret must match SecretHeader. When empty, requests are accepted only if
	// AllowUnauthenticated is set (development).
	CronSecret           string
	AllowUnauthenticated bool
	Gatherer             prometheus.Gatherer
}

type cronHandler struct {
	svc    app.NotificationService
	logger *logrus.Entry
}

// NewRouter builds the gin engine serving the trigger, /healthz and /metrics.
func NewRouter(svc app.NotificationService, opts Options, logger *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	h := &cronHandler{svc: svc, logger: logger.WithField("component", "http_trigger")}
	cron := r.Group("/api/cron", requireSecret(opts))
	cron.GET("/notifications", h.runNotifications)
	cron.POST("/notifications", h.runNotifications)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func (h *cronHandler) runNotifications(c *gin.Context) {
	started := time.Now()
	result := h.svc.RunCycle(c.Request.Context())
	h.logger.WithFields(logrus.Fields{
		"detected":    result.Detection.Sent,
		"sent":        result.Sending.Sent,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("Notification cycle triggered over HTTP")
	success(c, "notification cycle completed", result)
}

func requireSecret(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.CronSecret == "" {
			if opts.AllowUnauthenticated {
				c.Next()
				return
			}
			fail(c, http.StatusServiceUnavailable, "cron secret is not configured")
			return
		}
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(opts.CronSecret)) != 1 {
			fail(c, http.StatusUnauthorized, "invalid cron secret")
			return
		}
		c.Next()
	}
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
		}).Debug("HTTP request")
	}
}
