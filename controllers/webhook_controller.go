package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MaximeEsteves/backend-lesmidena/apperrors"
	"github.com/MaximeEsteves/backend-lesmidena/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxWebhookBody bounds the Stripe payload read from the request.
const MaxWebhookBody = 64 << 10

type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, sigHeader string) (*services.ProcessResult, error)
}

type WebhookController struct {
	processor WebhookProcessor
	logger    *zap.Logger
}

func NewWebhookController(processor WebhookProcessor, logger *zap.Logger) *WebhookController {
	return &WebhookController{processor: processor, logger: logger}
}

// StripeWebhook answers 400 when the delivery cannot be authenticated or
// decoded, 500 when the order could not be stored (Stripe will redeliver) and
// 200 otherwise, including duplicates and event types we do not handle.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		wc.logger.Warn("Failed to read webhook body", zap.Error(err))
		apperrors.Respond(c, apperrors.BadRequest("Unreadable request body", err))
		return
	}

	res, err := wc.processor.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, services.ErrSignatureInvalid):
		apperrors.Respond(c, apperrors.BadRequest("Webhook signature verification failed", err))
		return
	case errors.Is(err, services.ErrMalformedEvent):
		apperrors.Respond(c, apperrors.BadRequest("Malformed checkout event", err))
		return
	case err != nil:
		wc.logger.Error("Webhook processing failed", zap.Error(err))
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}

	body := gin.H{"received": true, "outcome": res.Outcome}
	if res.Order != nil {
		body["order_id"] = res.Order.ID
	}
	c.JSON(http.StatusOK, body)
}
