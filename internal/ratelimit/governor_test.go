package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cratedigger/internal/core"
)

// fakeClock advances only when the governor sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestGovernor(t *testing.T, config Config, jitter time.Duration) (*Governor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := New("test", config, zap.NewNop())
	g.now = clock.Now
	g.sleep = clock.Sleep
	g.jitter = func(limit time.Duration) time.Duration {
		if jitter > limit {
			t.Fatalf("jitter %v exceeds limit %v", jitter, limit)
		}
		return jitter
	}
	return g, clock
}

func TestGovernor_Acquire_FirstCallDoesNotBlock(t *testing.T) {
	g, clock := newTestGovernor(t, Config{CallsPerMinute: 60}, 0)

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if len(clock.sleeps) != 0 {
		t.Errorf("First Acquire should not sleep, slept %v", clock.sleeps)
	}
}

func TestGovernor_Acquire_EnforcesMinInterval(t *testing.T) {
	tests := []struct {
		name   string
		jitter time.Duration
	}{
		{"No jitter", 0},
		{"Half jitter", 50 * time.Millisecond},
		{"Near max jitter", 99 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, clock := newTestGovernor(t, Config{CallsPerMinute: 60}, tt.jitter)
			ctx := context.Background()

			if err := g.Acquire(ctx); err != nil {
				t.Fatalf("first Acquire() error = %v", err)
			}
			first := clock.Now()

			if err := g.Acquire(ctx); err != nil {
				t.Fatalf("second Acquire() error = %v", err)
			}
			gap := clock.Now().Sub(first)

			if gap < time.Second {
				t.Errorf("gap between returns = %v, want >= 1s", gap)
			}
			if gap > 1100*time.Millisecond {
				t.Errorf("gap between returns = %v, want <= 1.1s", gap)
			}
		})
	}
}

func TestGovernor_Acquire_NoWaitAfterInterval(t *testing.T) {
	g, clock := newTestGovernor(t, Config{CallsPerMinute: 60}, 10*time.Millisecond)
	ctx := context.Background()

	if err := g.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	clock.now = clock.now.Add(2 * time.Second)

	if err := g.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	if len(clock.sleeps) != 0 {
		t.Errorf("Acquire after the interval should not sleep, slept %v", clock.sleeps)
	}
}

func TestGovernor_Acquire_RealClock(t *testing.T) {
	// 600 calls per minute gives a 100ms interval.
	g := New("real", Config{CallsPerMinute: 600}, zap.NewNop())
	ctx := context.Background()

	if err := g.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := g.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("second Acquire returned after %v, want >= 100ms", elapsed)
	}
}

func TestGovernor_Acquire_Cancelled(t *testing.T) {
	g := New("cancel", Config{CallsPerMinute: 1}, zap.NewNop())

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() on cancelled context = %v, want context.Canceled", err)
	}
}

func TestGovernor_OnResponse(t *testing.T) {
	low := 3
	plenty := 40

	tests := []struct {
		name     string
		info     core.RateInfo
		expected []time.Duration
	}{
		{"Healthy response", core.RateInfo{Remaining: &plenty}, nil},
		{"No rate headers", core.RateInfo{}, nil},
		{"Rate limited uses cooldown", core.RateInfo{Limited: true}, []time.Duration{60 * time.Second}},
		{"Rate limited honours Retry-After", core.RateInfo{Limited: true, RetryAfter: 5 * time.Second},
			[]time.Duration{5 * time.Second}},
		{"Below low-water mark", core.RateInfo{Remaining: &low}, []time.Duration{30 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, clock := newTestGovernor(t, Config{
				CallsPerMinute:   60,
				Cooldown:         60 * time.Second,
				LowWaterCooldown: 30 * time.Second,
				LowWaterMark:     5,
			}, 0)

			if err := g.OnResponse(context.Background(), tt.info); err != nil {
				t.Fatalf("OnResponse() error = %v", err)
			}

			if len(clock.sleeps) != len(tt.expected) {
				t.Fatalf("sleeps = %v, expected %v", clock.sleeps, tt.expected)
			}
			for i := range tt.expected {
				if clock.sleeps[i] != tt.expected[i] {
					t.Errorf("sleep[%d] = %v, expected %v", i, clock.sleeps[i], tt.expected[i])
				}
			}
		})
	}
}

func TestGovernor_Do_RetriesOnceAfterCooldown(t *testing.T) {
	g, clock := newTestGovernor(t, Config{CallsPerMinute: 60, Cooldown: 60 * time.Second}, 0)

	calls := 0
	err := g.Do(context.Background(), func(_ context.Context) (core.RateInfo, error) {
		calls++
		if calls == 1 {
			return core.RateInfo{Limited: true}, nil
		}
		return core.RateInfo{}, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if calls != 2 {
		t.Errorf("op called %d times, expected 2", calls)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 60*time.Second {
		t.Errorf("sleeps = %v, expected one 60s cooldown", clock.sleeps)
	}
	if stats := g.GetStats(); stats.Retries != 1 || stats.RateLimited != 1 {
		t.Errorf("stats = %+v, expected one retry and one rate limit", stats)
	}
}

func TestGovernor_Do_RateLimitedError(t *testing.T) {
	g, _ := newTestGovernor(t, Config{CallsPerMinute: 60}, 0)

	calls := 0
	err := g.Do(context.Background(), func(_ context.Context) (core.RateInfo, error) {
		calls++
		if calls < 3 {
			return core.RateInfo{}, core.ErrRateLimited
		}
		return core.RateInfo{}, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, expected 3", calls)
	}
}

func TestGovernor_Do_BoundedRetries(t *testing.T) {
	g, _ := newTestGovernor(t, Config{CallsPerMinute: 60, MaxRetries: 2}, 0)

	calls := 0
	err := g.Do(context.Background(), func(_ context.Context) (core.RateInfo, error) {
		calls++
		return core.RateInfo{Limited: true}, nil
	})

	if !errors.Is(err, core.ErrRetriesExhausted) {
		t.Fatalf("Do() error = %v, expected ErrRetriesExhausted", err)
	}
	if !errors.Is(err, core.ErrRateLimited) {
		t.Errorf("Do() error = %v, expected to wrap ErrRateLimited", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, expected 3 (1 + 2 retries)", calls)
	}
}

func TestGovernor_Do_PassesThroughOtherErrors(t *testing.T) {
	g, _ := newTestGovernor(t, Config{CallsPerMinute: 60}, 0)
	remoteErr := errors.New("boom")

	calls := 0
	err := g.Do(context.Background(), func(_ context.Context) (core.RateInfo, error) {
		calls++
		return core.RateInfo{}, remoteErr
	})

	if !errors.Is(err, remoteErr) {
		t.Errorf("Do() error = %v, expected %v", err, remoteErr)
	}
	if calls != 1 {
		t.Errorf("non rate-limit errors must not be retried, op called %d times", calls)
	}
}

func TestGovernor_LowWaterWarningIsThrottled(t *testing.T) {
	zapCore, logs := observer.New(zapcore.InfoLevel)
	g := New("discogs", Config{CallsPerMinute: 60, LowWaterMark: 5}, zap.New(zapCore))
	g.sleep = func(context.Context, time.Duration) error { return nil }

	low := 1
	for i := 0; i < 3; i++ {
		if err := g.OnResponse(context.Background(), core.RateInfo{Remaining: &low}); err != nil {
			t.Fatal(err)
		}
	}

	if got := logs.FilterMessage("Approaching rate limit, pausing to prevent 429 errors").Len(); got != 1 {
		t.Errorf("expected 1 low-water warning, got %d", got)
	}
	if stats := g.GetStats(); stats.LowWaterHits != 3 {
		t.Errorf("LowWaterHits = %d, expected 3", stats.LowWaterHits)
	}
}
