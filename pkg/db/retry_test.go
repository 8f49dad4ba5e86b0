package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/shopcore/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
)

func TestRetryOnConflictReplaysUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	err := RetryOnConflict(context.Background(), RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		OnRetry:    func(attempt int, _ error) { retried = append(retried, attempt) },
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "stock changed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Fatalf("unexpected retry callbacks %v", retried)
	}
}

func TestRetryOnConflictIsBounded(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "stock changed")
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict) {
		t.Fatalf("expected conflict after exhausting retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 1 call plus 2 retries, got %d", calls)
	}
}

func TestRetryOnConflictDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	rejected := pkgerrors.New(pkgerrors.CodeOrderRejected, "insufficient stock")
	err := RetryOnConflict(context.Background(), RetryPolicy{MaxRetries: 5}, func(context.Context) error {
		calls++
		return rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("expected rejection to surface unchanged, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRetryOnConflictStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryOnConflict(ctx, RetryPolicy{MaxRetries: 5, BaseDelay: time.Second}, func(context.Context) error {
		return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "stock changed")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestPolicyFor(t *testing.T) {
	policy := PolicyFor(config.OrdersConfig{MaxConflictRetries: 4, RetryBaseDelay: 5 * time.Millisecond})
	if policy.MaxRetries != 4 || policy.BaseDelay != 5*time.Millisecond {
		t.Fatalf("unexpected policy %+v", policy)
	}
}
