package services

import (
	"errors"
	"fmt"

	"github.com/MaximeEsteves/backend-lesmidena/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeVerifier authenticates Stripe webhook deliveries with the endpoint secret.
type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(webhookSecret string) *StripeVerifier {
	return &StripeVerifier{secret: webhookSecret}
}

// VerifyAndParse checks the Stripe-Signature header against the raw request body
// and decodes the event. payload must be the bytes exactly as received.
func (v *StripeVerifier) VerifyAndParse(payload []byte, sigHeader string) (*models.PaymentEvent, stripe.Event, error) {
	if sigHeader == "" {
		return nil, stripe.Event{}, fmt.Errorf("%w: missing Stripe-Signature header", ErrSignatureInvalid)
	}
	if v.secret == "" {
		return nil, stripe.Event{}, errors.New("stripe webhook secret not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	return &models.PaymentEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		Payload:   payload,
		Signature: sigHeader,
	}, event, nil
}
