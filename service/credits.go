package service

import (
	"context"
	"errors"
	"fmt"

	"scriptslap-server/metrics"
	"scriptslap-server/models"

	"go.uber.org/zap"
)

// CreditCosts are the prices of the two billable operations.
type CreditCosts struct {
	Generate int
	Refine   int
}

// MaxIdempotencyKeyLength matches the credit_reservations.idempotency_key column.
const MaxIdempotencyKeyLength = 128

func validateIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyLength {
		return &ValidationError{Message: "Idempotency key is too long", Fields: []string{"Idempotency-Key"}}
	}
	return nil
}

// ledger wraps the reservation calls shared by generation and refinement.
type ledger struct {
	store  Store
	logger *zap.Logger
}

// replay looks up a previous request with the same idempotency key. It
// returns the resource id of a confirmed request, or ErrIdempotencyInFlight
// while the earlier request is still running.
func (l ledger) replay(ctx context.Context, userID, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	res, err := l.store.FindReservationByKey(ctx, userID, key)
	if errors.Is(err, models.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find reservation: %w", err)
	}
	switch res.Status {
	case models.ReservationConfirmed:
		return res.ResourceID, true, nil
	case models.ReservationReserved:
		return "", false, ErrIdempotencyInFlight
	}
	return "", false, nil
}

func (l ledger) reserve(ctx context.Context, userID, operation string, cost int, key, resourceID string) (*models.CreditReservation, error) {
	res := &models.CreditReservation{
		UserID:     userID,
		Operation:  operation,
		Cost:       cost,
		ResourceID: resourceID,
	}
	if key != "" {
		res.IdempotencyKey = &key
	}
	if err := l.store.ReserveCredits(ctx, res); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrIdempotencyInFlight
		}
		return nil, err
	}
	return res, nil
}

func (l ledger) confirm(ctx context.Context, res *models.CreditReservation) {
	if err := l.store.ConfirmReservation(ctx, res.ID); err != nil {
		l.logger.Error("confirm reservation failed", zap.String("reservation_id", res.ID), zap.Error(err))
		return
	}
	metrics.CreditsCharged.WithLabelValues(res.Operation).Add(float64(res.Cost))
}

// release refunds the reservation, ignoring cancellation of ctx.
func (l ledger) release(ctx context.Context, res *models.CreditReservation) {
	if err := l.store.ReleaseReservation(context.WithoutCancel(ctx), res.ID); err != nil {
		l.logger.Error("release reservation failed",
			zap.String("reservation_id", res.ID),
			zap.String("user_id", res.UserID),
			zap.Int("cost", res.Cost),
			zap.Error(err),
		)
		return
	}
	metrics.CreditsReleased.WithLabelValues(res.Operation).Add(float64(res.Cost))
}
