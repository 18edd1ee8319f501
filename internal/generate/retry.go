package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storyboard/internal/sdl"
)

// RetryPolicy retries a backend call with exponential backoff. The sleeper
// indirection exists so tests can run without real delays.
type RetryPolicy struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration

	sleeper func(time.Duration)
}

// PolicyFromConfig builds the retry policy from the document configuration.
func PolicyFromConfig(cfg sdl.RetryConfig) RetryPolicy {
	return RetryPolicy{
		Enabled:     cfg.Enabled,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.DelaySeconds) * time.Second,
		sleeper:     time.Sleep,
	}
}

// WithSleeper overrides how retry delays are performed.
func (p RetryPolicy) WithSleeper(sleeper func(time.Duration)) RetryPolicy {
	p.sleeper = sleeper
	return p
}

// Do runs fn under the policy. Each failed attempt doubles the delay. The
// last error is returned once attempts are exhausted.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, operation string, fn func() error) error {
	if !p.Enabled {
		return fn()
	}

	sleep := p.sleeper
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < p.MaxAttempts-1 {
			delay := p.BaseDelay * (1 << attempt)
			logger.Warn("attempt failed, retrying",
				"operation", operation,
				"attempt", attempt+1,
				"max_attempts", p.MaxAttempts,
				"delay", delay,
				"error", lastErr)
			sleep(delay)
		} else {
			logger.Error("all attempts failed",
				"operation", operation,
				"max_attempts", p.MaxAttempts,
				"error", lastErr)
		}
	}
	if lastErr == nil {
		return fmt.Errorf("%s: no attempts were made", operation)
	}
	return lastErr
}
