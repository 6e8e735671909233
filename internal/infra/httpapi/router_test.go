package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"subscription_notifier/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	calls int
}

func (s *stubService) RunCycle(context.Context) app.CycleResult {
	s.calls++
	return app.CycleResult{
		Detection: app.Result{Processed: 2, Sent: 1, Errors: []string{}},
		Sending:   app.Result{Processed: 1, Sent: 1, Errors: []string{}},
	}
}
func (s *stubService) DetectUpcoming(context.Context) app.Result  { return app.Result{} }
func (s *stubService) DispatchPending(context.Context) app.Result { return app.Result{} }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func do(r http.Handler, method, path, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerRequiresSecret(t *testing.T) {
	svc := &stubService{}
	r := NewRouter(svc, Options{CronSecret: "s3cret"}, quietLogger())

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/cron/notifications", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/cron/notifications", "wrong").Code)
	assert.Zero(t, svc.calls)
}

func TestTriggerRunsCycle(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			svc := &stubService{}
			r := NewRouter(svc, Options{CronSecret: "s3cret"}, quietLogger())

			w := do(r, method, "/api/cron/notifications", "s3cret")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, 1, svc.calls)

			var body struct {
				Success bool            `json:"success"`
				Data    app.CycleResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, body.Success)
			assert.Equal(t, 1, body.Data.Detection.Sent)
			assert.Equal(t, 1, body.Data.Sending.Sent)
			assert.Contains(t, w.Body.String(), `"detection":{"processed":2,"sent":1,"failed":0,"errors":[]}`)
		})
	}
}

func TestTriggerWithoutSecretConfigured(t *testing.T) {
	svc := &stubService{}
	locked := NewRouter(svc, Options{}, quietLogger())
	assert.Equal(t, http.StatusServiceUnavailable, do(locked, http.MethodGet, "/api/cron/notifications", "").Code)

	open := NewRouter(svc, Options{AllowUnauthenticated: true}, quietLogger())
	assert.Equal(t, http.StatusOK, do(open, http.MethodGet, "/api/cron/notifications", "").Code)
	assert.Equal(t, 1, svc.calls)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "notifier_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	r := NewRouter(&stubService{}, Options{Gatherer: reg}, quietLogger())

	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "notifier_test_total 1"))
}
