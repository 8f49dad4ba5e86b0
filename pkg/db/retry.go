package db

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/angelmondragon/shopcore/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
)

const (
	defaultRetryBaseDelay = 20 * time.Millisecond
	maxRetryDelay         = 500 * time.Millisecond
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RetryPolicy bounds how often a conflicting unit of work is replayed.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// OnRetry is invoked before each replay with the attempt number that failed.
	OnRetry func(attempt int, err error)
}

// PolicyFor builds the conflict retry policy from the orders configuration.
func PolicyFor(cfg config.OrdersConfig) RetryPolicy {
	return RetryPolicy{MaxRetries: cfg.MaxConflictRetries, BaseDelay: cfg.RetryBaseDelay}
}

// RetryOnConflict runs fn and replays it while it fails with a concurrency
// conflict, up to MaxRetries extra attempts. Any other error is returned
// immediately. The last conflict is returned once retries are exhausted.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	delay := base
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict) || attempt >= policy.MaxRetries {
			return err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err)
		}
		if err := sleep(ctx, withJitter(delay)); err != nil {
			return err
		}
		delay = nextDelay(delay)
	}
}

func nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > maxRetryDelay {
		return maxRetryDelay
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return d/2 + time.Duration(jitterSource.Int63n(int64(d)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
