package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MaximeEsteves/backend-lesmidena/models"
	"github.com/MaximeEsteves/backend-lesmidena/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "checkout-fulfillment"

// ProcessorTimeouts bounds the order store calls and the order event publication.
type ProcessorTimeouts struct {
	Store   time.Duration
	Publish time.Duration
}

// WebhookProcessor runs one webhook delivery through the fulfillment pipeline:
// verify, deduplicate, assemble, persist, then the post-commit side effects.
type WebhookProcessor struct {
	verifier  *StripeVerifier
	dedup     *EventDeduplicator
	assembler *OrderAssembler
	orders    repository.OrderRepository
	inventory *InventoryAdjuster
	notifier  *NotificationDispatcher
	publisher OrderEventPublisher
	metrics   MetricsRecorder
	timeouts  ProcessorTimeouts
	tracer    trace.Tracer
	logger    *zap.Logger
}

// WebhookProcessorDeps lists the collaborators wired into NewWebhookProcessor.
type WebhookProcessorDeps struct {
	Verifier  *StripeVerifier
	Dedup     *EventDeduplicator
	Assembler *OrderAssembler
	Orders    repository.OrderRepository
	Inventory *InventoryAdjuster
	Notifier  *NotificationDispatcher
	// Publisher is optional.
	Publisher OrderEventPublisher
	Metrics   MetricsRecorder
	Timeouts  ProcessorTimeouts
	Logger    *zap.Logger
}

func NewWebhookProcessor(deps WebhookProcessorDeps) *WebhookProcessor {
	return &WebhookProcessor{
		verifier:  deps.Verifier,
		dedup:     deps.Dedup,
		assembler: deps.Assembler,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		metrics:   metricsOrNoop(deps.Metrics),
		timeouts:  deps.Timeouts,
		tracer:    otel.Tracer(tracerName),
		logger:    deps.Logger,
	}
}

// Process handles one delivery. It returns an error only when nothing has been
// committed: ErrSignatureInvalid and ErrMalformedEvent for bad input, any other
// error for an infrastructure failure before the order was stored. Failures after
// the insert are reported in the result stages and never as an error.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, sigHeader string) (*ProcessResult, error) {
	ctx, span := p.tracer.Start(ctx, "webhook.process")
	defer span.End()

	result := &ProcessResult{}

	evt, event, err := p.verifier.VerifyAndParse(payload, sigHeader)
	if err != nil {
		result.Stages = append(result.Stages, stageFailed(StageVerify, err))
		if errors.Is(err, ErrSignatureInvalid) {
			_ = p.metrics.RecordCount(ctx, MetricWebhookRejected, nil)
		}
		p.logger.Warn("Webhook rejected", zap.Error(err))
		span.SetStatus(codes.Error, "signature verification failed")
		return result, err
	}
	result.EventID = evt.ID
	result.EventType = evt.Type
	result.Stages = append(result.Stages, stageOK(StageVerify, evt.ID))
	span.SetAttributes(attribute.String("stripe.event_id", evt.ID), attribute.String("stripe.event_type", evt.Type))

	if evt.Type != models.EventCheckoutSessionCompleted {
		p.logger.Info("Unhandled webhook event type", zap.String("event_type", evt.Type), zap.String("event_id", evt.ID))
		result.Outcome = OutcomeIgnored
		return result, nil
	}

	sess, warnings, err := DecodeCheckoutSession(event)
	if err != nil {
		p.logger.Error("Failed to decode checkout session", zap.String("event_id", evt.ID), zap.Error(err))
		span.SetStatus(codes.Error, "malformed event")
		return result, err
	}
	result.SessionID = sess.ID
	result.Warnings = warnings
	span.SetAttributes(attribute.String("stripe.session_id", sess.ID))

	done, err := p.deduplicate(ctx, sess.ID)
	if err != nil {
		result.Stages = append(result.Stages, stageFailed(StageDeduplicate, err))
		p.logger.Error("Duplicate check failed", zap.String("session_id", sess.ID), zap.Error(err))
		span.SetStatus(codes.Error, "duplicate check failed")
		return result, err
	}
	if done {
		return p.duplicate(ctx, result, StageDeduplicate, "order already exists"), nil
	}
	result.Stages = append(result.Stages, stageOK(StageDeduplicate, "new session"))

	asmCtx, asmSpan := p.tracer.Start(ctx, StageAssemble)
	order, asmWarnings := p.assembler.Assemble(asmCtx, sess)
	asmSpan.SetAttributes(attribute.Int("order.line_items", len(order.LineItems)))
	asmSpan.End()
	result.Warnings = append(result.Warnings, asmWarnings...)
	for _, w := range asmWarnings {
		if w.Code == WarnCatalogMiss {
			_ = p.metrics.RecordCount(ctx, MetricCatalogMisses, map[string]string{"ProductID": w.ProductID})
		}
	}
	result.Stages = append(result.Stages, stageOK(StageAssemble, fmt.Sprintf("%d line items", len(order.LineItems))))

	if err := p.persist(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderConflict) {
			return p.duplicate(ctx, result, StagePersist, "concurrent delivery stored the order first"), nil
		}
		result.Stages = append(result.Stages, stageFailed(StagePersist, err))
		p.logger.Error("Failed to persist order", zap.String("session_id", sess.ID), zap.Error(err))
		span.SetStatus(codes.Error, "persist failed")
		return result, err
	}
	result.Order = order
	result.Outcome = OutcomeFulfilled
	result.Stages = append(result.Stages, stageOK(StagePersist, order.ID.String()))
	_ = p.metrics.RecordCount(ctx, MetricOrdersCreated, map[string]string{"Currency": order.Currency})

	p.logger.Info("Order persisted",
		zap.String("order_id", order.ID.String()),
		zap.String("session_id", sess.ID),
		zap.Int("line_items", len(order.LineItems)),
		zap.Float64("total", order.Total),
		zap.Int("warnings", len(result.Warnings)),
	)

	// The order is committed; the caller going away must not cut the rest short.
	post := context.WithoutCancel(ctx)

	result.Stages = append(result.Stages, p.traced(post, StageInventory, func(c context.Context) StageResult {
		return p.inventory.Adjust(c, order)
	}))
	result.Stages = append(result.Stages, p.traced(post, StagePublish, func(c context.Context) StageResult {
		return p.publish(c, order)
	}))

	_, notifySpan := p.tracer.Start(post, "notify")
	notes := p.notifier.Dispatch(post, order)
	for _, n := range notes {
		if n.Err != nil {
			notifySpan.RecordError(n.Err)
		}
	}
	notifySpan.End()
	result.Stages = append(result.Stages, notes...)

	for _, s := range result.Stages {
		if s.Status == StageFailed {
			p.logger.Warn("Post-commit stage failed",
				zap.String("order_id", order.ID.String()),
				zap.String("stage", s.Stage),
				zap.String("detail", s.Detail),
			)
		}
	}
	return result, nil
}

func (p *WebhookProcessor) deduplicate(ctx context.Context, sessionID string) (bool, error) {
	ctx, span := p.tracer.Start(ctx, StageDeduplicate)
	defer span.End()
	ctx, cancel := p.withTimeout(ctx, p.timeouts.Store)
	defer cancel()
	return p.dedup.AlreadyProcessed(ctx, sessionID)
}

func (p *WebhookProcessor) persist(ctx context.Context, order *models.Order) error {
	ctx, span := p.tracer.Start(ctx, StagePersist)
	defer span.End()
	ctx, cancel := p.withTimeout(ctx, p.timeouts.Store)
	defer cancel()
	err := p.orders.Insert(ctx, order)
	if err != nil && !errors.Is(err, repository.ErrOrderConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *WebhookProcessor) publish(ctx context.Context, order *models.Order) StageResult {
	if p.publisher == nil {
		return stageSkipped(StagePublish, "no publisher configured")
	}
	ctx, cancel := p.withTimeout(ctx, p.timeouts.Publish)
	defer cancel()
	if err := p.publisher.PublishOrderEvent(ctx, models.NewOrderCreatedEvent(order)); err != nil {
		p.logger.Error("Failed to publish order event", zap.String("order_id", order.ID.String()), zap.Error(err))
		return stageFailed(StagePublish, err)
	}
	return stageOK(StagePublish, models.TypeOrderCreated)
}

func (p *WebhookProcessor) duplicate(ctx context.Context, result *ProcessResult, stage, reason string) *ProcessResult {
	p.logger.Info("Skipping duplicate checkout webhook",
		zap.String("session_id", result.SessionID),
		zap.String("event_id", result.EventID),
		zap.String("reason", reason),
	)
	_ = p.metrics.RecordCount(ctx, MetricWebhookDuplicates, nil)
	result.Outcome = OutcomeDuplicate
	result.Stages = append(result.Stages, stageSkipped(stage, reason))
	return result
}

func (p *WebhookProcessor) traced(ctx context.Context, name string, fn func(context.Context) StageResult) StageResult {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()
	r := fn(ctx)
	span.SetAttributes(attribute.String("stage.status", string(r.Status)))
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, r.Detail)
	}
	return r
}

func (p *WebhookProcessor) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
