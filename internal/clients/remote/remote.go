package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the retry policy of one remote dependency. The notification
// client runs with fewer attempts than inventory and payment because
// notifications are best-effort.
type Config struct {
	Service           string
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration
}

// observer receives one observation per call attempt.
type observer interface {
	RemoteAttempt(ctx context.Context, service, outcome string, d time.Duration)
}

// classifier reports whether an error is worth retrying. Client-fault
// errors (bad input, not-found, conflict) are not: retrying cannot change
// the outcome.
type classifier func(err error) bool

// Caller wraps outbound calls with per-attempt timeout, exponential-backoff
// retry and transient-vs-client-fault classification.
type Caller struct {
	cfg       Config
	obs       observer
	tracer    trace.Tracer
	retryable classifier
	sleep     func(ctx context.Context, d time.Duration) error
}

// option configures a Caller.
type option func(*Caller)

// WithSleep replaces the inter-attempt sleep, letting tests drive the retry
// schedule with a fake clock.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) option {
	return func(c *Caller) {
		c.sleep = sleep
	}
}

// NewCaller creates a Caller for one remote dependency.
func NewCaller(cfg Config, obs observer, retryable classifier, opts ...option) *Caller {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}

	c := &Caller{
		cfg:       cfg,
		obs:       obs,
		tracer:    otel.Tracer("remote-client"),
		retryable: retryable,
		sleep:     sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do invokes fn, retrying transient failures with exponential backoff up to
// the attempt limit. Client-fault errors fail immediately. One span covers
// the whole retry sequence; each attempt emits a count and duration
// observation tagged with service name and outcome.
func (c *Caller) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, c.cfg.Service+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("peer.service", c.cfg.Service),
			attribute.Int("retry.max_attempts", c.cfg.MaxAttempts),
		),
	)
	defer span.End()

	delay := c.cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		err := c.attempt(ctx, fn)
		elapsed := time.Since(start)

		if err == nil {
			c.obs.RemoteAttempt(ctx, c.cfg.Service, "success", elapsed)
			return nil
		}
		lastErr = err

		if !c.isRetryable(err) {
			c.obs.RemoteAttempt(ctx, c.cfg.Service, "client_fault", elapsed)
			span.RecordError(err)
			span.SetStatus(codes.Error, "client fault")

			return err
		}

		c.obs.RemoteAttempt(ctx, c.cfg.Service, "transient_fault", elapsed)
		slog.WarnContext(ctx, "remote call failed, will retry",
			"service", c.cfg.Service,
			"operation", operation,
			"attempt", attempt,
			"error", err,
		)

		if attempt < c.cfg.MaxAttempts {
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				span.RecordError(sleepErr)
				span.SetStatus(codes.Error, "cancelled while backing off")

				return sleepErr
			}
			delay = time.Duration(float64(delay) * c.cfg.BackoffMultiplier)
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "attempts exhausted")

	return lastErr
}

// Notify runs fn under the same retry policy but swallows the terminal
// error: notification failures are logged and never reach the saga.
func (c *Caller) Notify(ctx context.Context, operation string, fn func(ctx context.Context) error) {
	if err := c.Do(ctx, operation, fn); err != nil {
		slog.ErrorContext(ctx, "best-effort call failed",
			"service", c.cfg.Service,
			"operation", operation,
			"error", err,
		)
	}
}

func (c *Caller) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	return fn(ctx)
}

func (c *Caller) isRetryable(err error) bool {
	// A timed-out attempt is always a transient failure.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return c.retryable(err)
}

// Call runs a result-returning operation through the caller's retry policy.
func Call[T any](ctx context.Context, c *Caller, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v

		return nil
	})

	return out, err
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
