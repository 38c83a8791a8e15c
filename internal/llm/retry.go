package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/pkg/logger"
	"github.com/chatloom/chatloom/pkg/metrics"
)

// Retrying wraps a Client with a bounded retry loop. Rate limits wait for
// the provider's suggested delay when one is present, otherwise both
// retryable conditions use an exponential schedule from the base delay.
// Every attempt is a full independent request.
type Retrying struct {
	client      Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *logger.Logger

	// sleep is replaceable in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrying creates the retry wrapper around client.
func NewRetrying(client Client, maxAttempts int, baseDelay time.Duration, log *logger.Logger) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrying{
		client:      client,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      log,
		sleep:       sleepCtx,
	}
}

// Name returns the wrapped provider name.
func (r *Retrying) Name() string {
	return r.client.Name()
}

// Complete runs the request with up to maxAttempts attempts. Empty prompts
// fail before any network call. Exhausting the budget, or hitting a
// non-retryable provider error, yields an ErrUpstream-wrapped failure.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = r.baseDelay
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0
	schedule.MaxInterval = 5 * time.Minute
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		start := time.Now()
		text, err := r.client.Complete(ctx, prompt)
		elapsed := time.Since(start).Seconds()
		if err == nil {
			metrics.RecordProviderRequest(r.client.Name(), "success", elapsed)
			return text, nil
		}
		metrics.RecordProviderRequest(r.client.Name(), "error", elapsed)
		lastErr = err

		if !Retryable(err) {
			return "", err
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		cause := "server_fault"
		var rl *RateLimitError
		if errors.As(err, &rl) {
			cause = "rate_limit"
			if rl.RetryAfter > 0 {
				delay = rl.RetryAfter
			}
		}
		metrics.ProviderRetriesTotal.WithLabelValues(r.client.Name(), cause).Inc()
		r.logger.Warn("provider attempt failed, retrying",
			zap.String("provider", r.client.Name()),
			zap.Int("attempt", attempt),
			zap.String("cause", cause),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := r.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %d attempts exhausted: %v", ErrUpstream, r.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
