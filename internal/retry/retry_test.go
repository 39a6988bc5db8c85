package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func testPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func classifyTransient(err error) Outcome {
	if errors.Is(err, errTransient) {
		return RetryableFailure
	}
	return FatalFailure
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), testPolicy(), classifyTransient, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 || calls != 1 {
		t.Errorf("v=%d calls=%d", v, calls)
	}
}

func TestDo_RetryableThenSuccess(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), testPolicy(), classifyTransient, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != "ok" || calls != 3 {
		t.Errorf("v=%q calls=%d", v, calls)
	}
}

func TestDo_FatalNotRetried(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), testPolicy(), classifyTransient, func(context.Context) (int, error) {
		calls++
		return 0, fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal failures must not be retried, got %d calls", calls)
	}
}

func TestDo_Exhaustion(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testPolicy(), classifyTransient, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("exhaustion must wrap the last error, got %v", err)
	}
	if !strings.Contains(err.Error(), "giving up after 3 attempts") {
		t.Errorf("error = %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialInterval: time.Minute, MaxInterval: time.Minute}

	_, err := Do(ctx, p, classifyTransient, func(context.Context) (int, error) {
		cancel()
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, classifyTransient, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if err == nil || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}
