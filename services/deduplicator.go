package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/MaximeEsteves/backend-lesmidena/repository"
)

// EventDeduplicator tells whether a checkout session already produced an order.
// It is only a fast path: the unique insert in OrderRepository is what makes
// concurrent redeliveries safe.
type EventDeduplicator struct {
	orders repository.OrderRepository
}

func NewEventDeduplicator(orders repository.OrderRepository) *EventDeduplicator {
	return &EventDeduplicator{orders: orders}
}

func (d *EventDeduplicator) AlreadyProcessed(ctx context.Context, sessionID string) (bool, error) {
	_, err := d.orders.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("duplicate check for session %s: %w", sessionID, err)
	}
}
