package adapter

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the exponential backoff around one service call.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64 `yaml:"max_retries" toml:"max_retries" env:"MAX"`
	// BaseDelay is the first backoff delay; each retry doubles it.
	BaseDelay time.Duration `yaml:"base_delay" toml:"base_delay" env:"BASE_DELAY"`
	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration `yaml:"max_delay" toml:"max_delay" env:"MAX_DELAY"`
	// JitterPercent randomizes each delay by up to this percentage.
	JitterPercent uint64 `yaml:"jitter_percent" toml:"jitter_percent" env:"JITTER_PERCENT"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		JitterPercent: 10,
	}
}

// NoRetry performs exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{BaseDelay: time.Millisecond}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultRetryPolicy().BaseDelay
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.JitterPercent > 0 {
		b = retry.WithJitterPercent(p.JitterPercent, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Retry runs fn, retrying with backoff while it fails with ErrNetwork or
// ErrRateLimited. Other errors return immediately. When retries are
// exhausted the last error is returned unchanged.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
