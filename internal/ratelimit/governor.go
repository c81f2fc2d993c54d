// Package ratelimit spaces and backs off calls to one external dependency.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cratedigger/internal/core"
)

const (
	// jitterFraction is the share of minInterval added as uniform jitter
	jitterFraction = 10
	// lowWaterLogInterval throttles the "approaching limit" warning
	lowWaterLogInterval = time.Minute
)

// Config describes the budget of one external dependency.
type Config struct {
	CallsPerMinute   int
	Cooldown         time.Duration
	LowWaterCooldown time.Duration
	LowWaterMark     int
	// MaxRetries bounds rate-limit retries in Do; 0 means unbounded
	MaxRetries int
}

// ConfigFrom builds a governor config from the shared rate settings.
func ConfigFrom(rc core.RateConfig, callsPerMinute int) Config {
	return Config{
		CallsPerMinute:   callsPerMinute,
		Cooldown:         rc.Cooldown,
		LowWaterCooldown: rc.LowWaterCooldown,
		LowWaterMark:     rc.LowWaterMark,
		MaxRetries:       rc.MaxRetries,
	}
}

// Governor enforces minimum spacing between calls and pauses on 429 or low remaining quota.
// One instance per external dependency; governors are never shared across dependencies.
type Governor struct {
	name        string
	minInterval time.Duration
	config      Config
	logger      *zap.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration

	lowWaterLog *rate.Sometimes

	mutex    sync.Mutex
	lastCall time.Time
	stats    Stats
}

// Stats contains governor counters for monitoring/debugging
type Stats struct {
	Name          string        `json:"name"`
	Calls         int           `json:"calls"`
	Waits         int           `json:"waits"`
	RateLimited   int           `json:"rate_limited"`
	LowWaterHits  int           `json:"low_water_hits"`
	Retries       int           `json:"retries"`
	MinInterval   time.Duration `json:"min_interval"`
	TotalWaitTime time.Duration `json:"total_wait_time"`
}

// New creates a governor allowing callsPerMinute calls, i.e. minInterval = 60s / callsPerMinute.
func New(name string, config Config, logger *zap.Logger) *Governor {
	if config.CallsPerMinute <= 0 {
		config.CallsPerMinute = core.DefaultDiscogsCallsPerMinute
	}
	if config.Cooldown <= 0 {
		config.Cooldown = core.DefaultRateLimitCooldown
	}
	if config.LowWaterCooldown <= 0 {
		config.LowWaterCooldown = core.DefaultLowWaterCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	minInterval := time.Minute / time.Duration(config.CallsPerMinute)

	return &Governor{
		name:        name,
		minInterval: minInterval,
		config:      config,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
		jitter:      uniformJitter,
		lowWaterLog: &rate.Sometimes{First: 1, Interval: lowWaterLogInterval},
		stats:       Stats{Name: name, MinInterval: minInterval},
	}
}

// Name returns the dependency this governor protects.
func (g *Governor) Name() string {
	return g.name
}

// Acquire blocks until minInterval plus up to 10% jitter has passed since the previous Acquire returned.
// The first call never blocks.
func (g *Governor) Acquire(ctx context.Context) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !g.lastCall.IsZero() {
		elapsed := g.now().Sub(g.lastCall)
		if elapsed < g.minInterval {
			wait := g.minInterval - elapsed + g.jitter(g.minInterval/jitterFraction)
			g.stats.Waits++
			g.stats.TotalWaitTime += wait
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	g.lastCall = g.now()
	g.stats.Calls++
	return nil
}

// OnResponse applies the remote's rate signal: a 429 suspends for Retry-After (or the cooldown),
// a remaining quota under the low-water mark suspends for the secondary cooldown.
func (g *Governor) OnResponse(ctx context.Context, info core.RateInfo) error {
	if info.Limited {
		wait := g.config.Cooldown
		if info.RetryAfter > 0 {
			wait = info.RetryAfter
		}

		g.mutex.Lock()
		g.stats.RateLimited++
		g.stats.TotalWaitTime += wait
		g.mutex.Unlock()

		g.logger.Warn("Hit rate limit, cooling down",
			zap.String("dependency", g.name),
			zap.Duration("wait", wait))
		return g.sleep(ctx, wait)
	}

	if info.Remaining != nil && *info.Remaining < g.config.LowWaterMark {
		g.mutex.Lock()
		g.stats.LowWaterHits++
		g.stats.TotalWaitTime += g.config.LowWaterCooldown
		g.mutex.Unlock()

		remaining := *info.Remaining
		g.lowWaterLog.Do(func() {
			g.logger.Info("Approaching rate limit, pausing to prevent 429 errors",
				zap.String("dependency", g.name),
				zap.Int("remaining", remaining),
				zap.Duration("wait", g.config.LowWaterCooldown))
		})
		return g.sleep(ctx, g.config.LowWaterCooldown)
	}

	return nil
}

// Do runs op under the governor and repeats it while the remote reports rate limiting.
// Retries are bounded by Config.MaxRetries when it is positive.
func (g *Governor) Do(ctx context.Context, op func(ctx context.Context) (core.RateInfo, error)) error {
	for attempt := 0; ; attempt++ {
		if err := g.Acquire(ctx); err != nil {
			return err
		}

		info, err := op(ctx)
		limited := info.Limited || errors.Is(err, core.ErrRateLimited)
		info.Limited = limited

		if waitErr := g.OnResponse(ctx, info); waitErr != nil {
			return waitErr
		}

		if !limited {
			return err
		}

		if g.config.MaxRetries > 0 && attempt >= g.config.MaxRetries {
			if err == nil {
				err = core.ErrRateLimited
			}
			return fmt.Errorf("%s: %w after %d retries: %w", g.name, core.ErrRetriesExhausted, attempt, err)
		}

		g.mutex.Lock()
		g.stats.Retries++
		g.mutex.Unlock()

		g.logger.Debug("Retrying rate-limited call",
			zap.String("dependency", g.name),
			zap.Int("attempt", attempt+1))
	}
}

// GetStats returns a snapshot of the governor counters.
func (g *Governor) GetStats() Stats {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.stats
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit) //nolint:gosec // Jitter doesn't require crypto-secure randomness
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
