package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/shopcore/internal/orders"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/outbox"
)

const (
	orderExpiryJobName    = "order-expiry"
	defaultExpiryBatch    = 200
	defaultPendingTimeout = 72 * time.Hour
)

type orderExpirer interface {
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	TransitionOrderStatus(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

type OrderExpiryJobParams struct {
	Logger     *logger.Logger
	Orders     orderExpirer
	PendingTTL time.Duration
	BatchSize  int
}

// NewOrderExpiryJob cancels orders left pending longer than PendingTTL. The
// cancellation goes through the order state machine, so stock is restored and
// order_status_changed is emitted exactly as for a manual cancel.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTimeout
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderExpiryJob{
		logg:   logg,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders orderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return orderExpiryJobName }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	pending, err := j.orders.ListExpiredPending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list expired pending orders: %w", err)
	}

	var (
		errs      error
		cancelled int
		skipped   int
	)
	for _, order := range pending {
		_, err := j.orders.TransitionOrderStatus(ctx, orders.TransitionInput{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancelled,
			Actor:   outbox.SystemActor(orderExpiryJobName),
		})
		switch {
		case err == nil:
			cancelled++
		case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition), pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict):
			// moved on since it was listed
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(pending),
		"cancelled":  cancelled,
		"skipped":    skipped,
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return errs
}
