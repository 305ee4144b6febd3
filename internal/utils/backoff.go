package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Backoff describes a capped exponential retry policy bounded by a total timeout.
type Backoff struct {
	Initial      time.Duration // first wait between attempts
	Max          time.Duration // cap for a single wait
	Total        time.Duration // overall deadline for all attempts
	PerAttempt   time.Duration // timeout handed to each attempt
	WarnAfter    int           // attempts before retries are logged at error level
	AttemptLabel string        // used in the final error, ex: "redis at localhost:6379"
}

// Validate ensures the policy can make progress.
func (b Backoff) Validate() error {
	if b.Total <= 0 {
		return fmt.Errorf("total timeout must be > 0, got %v", b.Total)
	}
	if b.Initial <= 0 {
		return fmt.Errorf("retry interval must be > 0, got %v", b.Initial)
	}
	if b.Max <= 0 {
		return fmt.Errorf("max wait must be > 0, got %v", b.Max)
	}
	if b.PerAttempt <= 0 {
		return fmt.Errorf("attempt timeout must be > 0, got %v", b.PerAttempt)
	}
	if b.WarnAfter < 0 {
		return fmt.Errorf("warn threshold must be >= 0, got %d", b.WarnAfter)
	}
	return nil
}

// RetryHook is called after each failed attempt, before waiting.
type RetryHook func(attempt int, remaining, nextWait time.Duration, err error)

// Retry runs attempt until it succeeds or b.Total elapses. The wait doubles
// after every failure and is capped at b.Max. It returns the number of
// attempts made.
func Retry(ctx context.Context, b Backoff, attempt func(ctx context.Context) error, onRetry RetryHook) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Total)
	defer cancel()

	n := 0
	wait := b.Initial
	for {
		n++

		attemptCtx, attemptCancel := context.WithTimeout(ctx, b.PerAttempt)
		err := attempt(attemptCtx)
		attemptCancel()
		if err == nil {
			return n, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, fmt.Errorf("%s unavailable after %d attempts (timeout: %v): %w",
				b.AttemptLabel, n, b.Total, err)
		case <-timer.C:
			if onRetry != nil {
				onRetry(n, TimeLeft(ctx), wait, err)
			}
			wait *= 2
			if wait > b.Max {
				wait = b.Max
			}
		}
	}
}

// TimeLeft returns the remaining time before the context deadline.
func TimeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}

// RetryLogger escalates retry logs from warn to error as attempts pile up or
// the deadline approaches. Shared by every backing service connector.
func RetryLogger(log logger.Logger, addr string, warnThreshold int) RetryHook {
	return func(attempt int, remaining, nextRetry time.Duration, err error) {
		switch {
		case remaining < 10*time.Second:
			log.Error("still down - retrying but timeout approaching",
				logger.String("addr", addr),
				logger.Int("attempt", attempt),
				logger.Duration("remaining", remaining),
				logger.Duration("next_retry_in", nextRetry),
				logger.Error(err))
		case attempt <= warnThreshold:
			log.Warn("connection failed, retrying",
				logger.String("addr", addr),
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", nextRetry),
				logger.Error(err))
		default:
			log.Error("still unavailable - connection attempts failing",
				logger.String("addr", addr),
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", nextRetry),
				logger.Error(err))
		}
	}
}
