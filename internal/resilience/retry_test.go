package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("overloaded"), 529)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonTransientStopsImmediately(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return errors.New("invalid request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("still down"), 503)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}
	var calls int
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(context.Context) error {
			calls++
			return NewTransientError(errors.New("flaky"), 500)
		})
	}()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
	if !IsTransient(NewTransientError(errors.New("x"), 429)) {
		t.Error("TransientError should be transient")
	}
	if !IsTransient(errors.New("api error: rate limit exceeded")) {
		t.Error("rate limit message should be transient")
	}
	if IsTransient(errors.New("bad request")) {
		t.Error("bad request should not be transient")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	b := NewBreaker(2, 10*time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should start closed")
	}
	b.Record(errors.New("boom"))
	b.Record(errors.New("boom"))
	if b.Allow() {
		t.Fatal("breaker should be open after threshold failures")
	}
	time.Sleep(15 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should allow a probe after cooldown")
	}
	b.Record(nil)
	if !b.Allow() {
		t.Fatal("breaker should close after successful probe")
	}
}
