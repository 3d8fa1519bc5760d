// Package readiness decides whether a started process or deployed
// target is usable, by probing it with bounded retries.
package readiness

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Outcome string

const (
	Ready    Outcome = "ready"
	TimedOut Outcome = "timed_out"
)

// Probe is a boolean-valued check. A nil return means ready; the error
// carries diagnostic detail for the log.
type Probe func(ctx context.Context) error

type Poller struct {
	logger *zap.Logger
}

func NewPoller(logger *zap.Logger) *Poller {
	return &Poller{logger: logger.Named("readiness")}
}

// WaitBounded invokes the probe up to maxAttempts times with a fixed
// interval between attempts, returning Ready on the first success.
func (p *Poller) WaitBounded(ctx context.Context, probe Probe, maxAttempts int, interval time.Duration) (Outcome, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	attempt := 0
	operation := func() error {
		attempt++
		err := probe(ctx)
		if err != nil {
			p.logger.Debug("Probe failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(err),
			)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		p.logger.Warn("Probe never succeeded", zap.Int("attempts", attempt), zap.Error(err))
		return TimedOut, err
	}

	p.logger.Info("Probe succeeded", zap.Int("attempts", attempt))
	return Ready, nil
}

// WaitAfterDelay sleeps once and then makes a single probe attempt.
// Used for local pre-test startup where the launch time is known.
func (p *Poller) WaitAfterDelay(ctx context.Context, probe Probe, delay time.Duration) (Outcome, error) {
	p.logger.Info("Waiting before single probe", zap.Duration("delay", delay))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return TimedOut, ctx.Err()
	}

	if err := probe(ctx); err != nil {
		p.logger.Warn("Probe failed after startup delay", zap.Error(err))
		return TimedOut, err
	}
	return Ready, nil
}
