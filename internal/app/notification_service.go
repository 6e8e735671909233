// internal/app/notification_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"subscription_notifier/internal/clock"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Result is the per-phase summary reported to operators.
type Result struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// CycleResult is the outcome of one full run: detection then sending.
type CycleResult struct {
	Detection Result `json:"detection"`
	Sending   Result `json:"sending"`
}

// HasProblems reports whether either phase recorded a failure or an error.
func (r CycleResult) HasProblems() bool {
	return r.Detection.Failed > 0 || r.Sending.Failed > 0 ||
		len(r.Detection.Errors) > 0 || len(r.Sending.Errors) > 0
}

// NotificationService runs the reminder workflow. It owns no timers; a scheduler,
// an HTTP trigger or an operator command calls RunCycle.
type NotificationService interface {
	// RunCycle detects upcoming events, materializes them, then dispatches everything
	// pending. It always returns a result, never an error.
	RunCycle(ctx context.Context) CycleResult
	DetectUpcoming(ctx context.Context) Result
	DispatchPending(ctx context.Context) Result
}

// RunRecorder receives run outcomes, e.g. for metrics.
type RunRecorder interface {
	ObserveRun(result CycleResult, elapsed time.Duration)
}

// RunReporter forwards a finished cycle to operators, e.g. a chat message on failures.
type RunReporter interface {
	ReportRun(ctx context.Context, result CycleResult) error
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	selector     *CandidateSelector
	materializer *Materializer
	dispatcher   *Dispatcher
	clock        clock.Clock
	recorder     RunRecorder
	logger       *logrus.Entry
}

func NewNotificationServiceImpl(
	selector *CandidateSelector,
	materializer *Materializer,
	dispatcher *Dispatcher,
	clk clock.Clock,
	recorder RunRecorder,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		selector:     selector,
		materializer: materializer,
		dispatcher:   dispatcher,
		clock:        clk,
		recorder:     recorder,
		logger:       logger.WithField("component", "notification_service"),
	}
}

// RunCycle runs detection and dispatch independently: a failing detection phase does
// not prevent the backlog from being sent, and vice versa.
func (s *NotificationServiceImpl) RunCycle(ctx context.Context) CycleResult {
	runID := ulid.Make().String()
	logCtx := s.logger.WithField("run_id", runID)
	logCtx.Info("Notification cycle started")
	started := s.clock.Now()

	result := CycleResult{
		Detection: s.guard(logCtx, "detection", func() Result { return s.DetectUpcoming(ctx) }),
		Sending:   s.guard(logCtx, "sending", func() Result { return s.DispatchPending(ctx) }),
	}

	elapsed := s.clock.Now().Sub(started)
	if s.recorder != nil {
		s.recorder.ObserveRun(result, elapsed)
	}
	logCtx.WithFields(logrus.Fields{
		"detected":    result.Detection.Sent,
		"sent":        result.Sending.Sent,
		"failed":      result.Detection.Failed + result.Sending.Failed,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Notification cycle finished")
	return result
}

// DetectUpcoming selects candidates across the whole reminder schedule and materializes them.
func (s *NotificationServiceImpl) DetectUpcoming(ctx context.Context) Result {
	jobs := s.selector.CollectJobs(ctx)
	return s.materializer.Materialize(ctx, jobs).AsResult()
}

// DispatchPending sends every pending notification.
func (s *NotificationServiceImpl) DispatchPending(ctx context.Context) Result {
	return s.dispatcher.DispatchPending(ctx)
}

// guard turns a panic inside a phase into a recorded error so the other phase still runs.
func (s *NotificationServiceImpl) guard(logCtx *logrus.Entry, phase string, fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logCtx.WithField("phase", phase).Errorf("Phase panicked: %v", r)
			res.Errors = append(nonNil(res.Errors), fmt.Sprintf("%s phase aborted: %v", phase, r))
		}
	}()
	res = fn()
	res.Errors = nonNil(res.Errors)
	return res
}
