// Package reconcile runs the background pass that resolves credentials left
// pending by an anchoring request whose outcome was not observed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"certledger/internal/credential/models"
	"certledger/internal/credential/service"
	"certledger/internal/platform/metrics"
)

// Reconciler is the slice of the credential service the worker drives.
type Reconciler interface {
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Credential, error)
	Reconcile(ctx context.Context, fp models.Fingerprint) (*models.Credential, service.ReconcileOutcome, error)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Examined  int
	Anchored  int
	Failed    int
	Abandoned int
	Waiting   int
	Errors    int
}

// Worker periodically reconciles pending credentials.
type Worker struct {
	reconciler Reconciler
	interval   time.Duration
	grace      time.Duration
	batchSize  int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Worker)

// WithInterval overrides the pass interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithGracePeriod skips credentials that became pending less than d ago, so
// anchoring requests still in flight are left to finish.
func WithGracePeriod(d time.Duration) Option {
	return func(w *Worker) {
		if d >= 0 {
			w.grace = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New constructs a Worker.
func New(reconciler Reconciler, opts ...Option) (*Worker, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	w := &Worker{
		reconciler: reconciler,
		interval:   time.Minute,
		grace:      5 * time.Minute,
		batchSize:  100,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Start runs a pass every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "reconcile pass failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce reconciles up to one batch of pending credentials. A failure on one
// credential does not stop the pass; errors are joined and returned.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	pending, err := w.reconciler.ListPending(ctx, time.Now().Add(-w.grace), w.batchSize)
	if err != nil {
		return res, fmt.Errorf("list pending credentials: %w", err)
	}
	w.metrics.SetPendingBacklog(len(pending))

	var errs []error
	for _, c := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res.Examined++
		_, outcome, err := w.reconciler.Reconcile(ctx, c.Fingerprint)
		if err != nil {
			res.Errors++
			w.metrics.IncrementReconcileOutcome("error")
			errs = append(errs, fmt.Errorf("reconcile %s: %w", c.Fingerprint.Short(), err))
			continue
		}
		w.metrics.IncrementReconcileOutcome(string(outcome))
		switch outcome {
		case service.ReconcileAnchored:
			res.Anchored++
		case service.ReconcileFailed:
			res.Failed++
		case service.ReconcileAbandoned:
			res.Abandoned++
		case service.ReconcileWaiting:
			res.Waiting++
		}
	}

	if res.Examined > 0 {
		w.logger.InfoContext(ctx, "reconcile pass complete",
			"examined", res.Examined,
			"anchored", res.Anchored,
			"failed", res.Failed,
			"abandoned", res.Abandoned,
			"waiting", res.Waiting,
			"errors", res.Errors,
		)
	}
	return res, errors.Join(errs...)
}
