package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
)

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) RemoteAttempt(_ context.Context, _, outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func newTestCaller(cfg Config, obs *recordingObserver, delays *[]time.Duration) *Caller {
	return NewCaller(cfg, obs, apperrors.IsTransient, WithSleep(
		func(_ context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		},
	))
}

func TestDoClientFaultNotRetried(t *testing.T) {
	obs := &recordingObserver{}
	var delays []time.Duration
	caller := newTestCaller(Config{
		Service:      "inventory",
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
	}, obs, &delays)

	attempts := 0
	err := caller.Do(context.Background(), "fetch", func(context.Context) error {
		attempts++
		return fmt.Errorf("product 7: %w", apperrors.ErrNotFound)
	})

	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Do() = %v, want not-found", err)
	}
	if attempts != 1 {
		t.Errorf("client-fault response retried: %d attempts, want 1", attempts)
	}
	if len(delays) != 0 {
		t.Errorf("client-fault response slept %d times, want 0", len(delays))
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "client_fault" {
		t.Errorf("outcomes = %v, want [client_fault]", obs.outcomes)
	}
}

func TestDoTransientRetriedToLimit(t *testing.T) {
	obs := &recordingObserver{}
	var delays []time.Duration
	caller := newTestCaller(Config{
		Service:           "payment",
		MaxAttempts:       4,
		InitialDelay:      50 * time.Millisecond,
		BackoffMultiplier: 2,
	}, obs, &delays)

	attempts := 0
	transient := apperrors.Transient(errors.New("gateway unavailable"))
	err := caller.Do(context.Background(), "charge", func(context.Context) error {
		attempts++
		return transient
	})

	if !errors.Is(err, transient) {
		t.Fatalf("Do() = %v, want last transient error", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}

	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
		if i > 0 && delays[i] <= delays[i-1] {
			t.Errorf("delays not strictly increasing: %v", delays)
		}
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	obs := &recordingObserver{}
	var delays []time.Duration
	caller := newTestCaller(Config{
		Service:      "inventory",
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
	}, obs, &delays)

	attempts := 0
	err := caller.Do(context.Background(), "adjust_stock", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.Transient(errors.New("timeout"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	wantOutcomes := []string{"transient_fault", "transient_fault", "success"}
	for i, o := range wantOutcomes {
		if obs.outcomes[i] != o {
			t.Errorf("outcomes = %v, want %v", obs.outcomes, wantOutcomes)
			break
		}
	}
}

func TestDoTimeoutTreatedTransient(t *testing.T) {
	obs := &recordingObserver{}
	var delays []time.Duration
	caller := newTestCaller(Config{
		Service:      "payment",
		MaxAttempts:  2,
		InitialDelay: 10 * time.Millisecond,
	}, obs, &delays)

	attempts := 0
	err := caller.Do(context.Background(), "charge", func(context.Context) error {
		attempts++
		return fmt.Errorf("charge: %w", context.DeadlineExceeded)
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() = %v, want deadline exceeded", err)
	}
	if attempts != 2 {
		t.Errorf("timed-out call not retried: %d attempts, want 2", attempts)
	}
}

func TestNotifySwallowsError(t *testing.T) {
	obs := &recordingObserver{}
	var delays []time.Duration
	caller := newTestCaller(Config{
		Service:      "notification",
		MaxAttempts:  2,
		InitialDelay: 5 * time.Millisecond,
	}, obs, &delays)

	attempts := 0
	caller.Notify(context.Background(), "notify", func(context.Context) error {
		attempts++
		return apperrors.Transient(errors.New("broker down"))
	})

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestCallReturnsValue(t *testing.T) {
	obs := &recordingObserver{}
	var delays []time.Duration
	caller := newTestCaller(Config{
		Service:      "inventory",
		MaxAttempts:  3,
		InitialDelay: 5 * time.Millisecond,
	}, obs, &delays)

	attempts := 0
	got, err := Call(context.Background(), caller, "fetch", func(context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, apperrors.Transient(errors.New("flaky"))
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Call() = %d, want 42", got)
	}
}
