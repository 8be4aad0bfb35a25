package services

import (
	"context"
	"errors"

	"github.com/MaximeEsteves/backend-lesmidena/models"
)

// OrderEventPublisher announces persisted orders to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// FanOutPublisher sends every event to all publishers and joins their errors.
// A failing publisher does not stop the others.
type FanOutPublisher []OrderEventPublisher

func (f FanOutPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishOrderEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
