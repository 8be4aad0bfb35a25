package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MaximeEsteves/backend-lesmidena/models"
	"github.com/MaximeEsteves/backend-lesmidena/repository"
	"github.com/MaximeEsteves/backend-lesmidena/sender"
	"github.com/MaximeEsteves/backend-lesmidena/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

// ---- orders ----

type memOrderRepo struct {
	mu        sync.Mutex
	bySession map[string]*models.Order
	findErr   error
	insertErr error
	inserts   int
	onInsert  func()
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{bySession: map[string]*models.Order{}}
}

func (r *memOrderRepo) FindBySessionID(_ context.Context, sessionID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	o, ok := r.bySession[sessionID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (r *memOrderRepo) Insert(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if _, ok := r.bySession[order.StripeSessionID]; ok {
		return repository.ErrOrderConflict
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	r.bySession[order.StripeSessionID] = order
	r.inserts++
	if r.onInsert != nil {
		r.onInsert()
	}
	return nil
}

func (r *memOrderRepo) FindAll(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Order, 0, len(r.bySession))
	for _, o := range r.bySession {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySession)
}

// ---- catalog ----

type memProductRepo struct {
	mu         sync.Mutex
	products   map[string]*models.Product
	findErr    map[string]error
	decErr     map[string]error
	decrements map[string]int
}

func newMemProductRepo(products ...models.Product) *memProductRepo {
	r := &memProductRepo{
		products:   map[string]*models.Product{},
		findErr:    map[string]error{},
		decErr:     map[string]error{},
		decrements: map[string]int{},
	}
	for i := range products {
		p := products[i]
		r.products[p.ID] = &p
	}
	return r
}

func (r *memProductRepo) FindByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.findErr[id]; err != nil {
		return nil, err
	}
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) DecrementStock(ctx context.Context, id string, quantity int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.decErr[id]; err != nil {
		return 0, err
	}
	p, ok := r.products[id]
	if !ok {
		return 0, repository.ErrProductNotFound
	}
	p.Stock -= quantity
	if p.Stock < 0 {
		p.Stock = 0
	}
	r.decrements[id]++
	return p.Stock, nil
}

func (r *memProductRepo) stock(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

func (r *memProductRepo) decrementCalls(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decrements[id]
}

// ---- email ----

type recordingSender struct {
	mu     sync.Mutex
	sent   []sender.Email
	failTo map[string]error
	calls  int
}

func newRecordingSender() *recordingSender {
	return &recordingSender{failTo: map[string]error{}}
}

func (s *recordingSender) SendEmail(ctx context.Context, email sender.Email) (sender.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return sender.SendResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failTo[email.To]; err != nil {
		return sender.SendResult{}, err
	}
	s.sent = append(s.sent, email)
	return sender.SendResult{MessageID: "<msg-" + email.To + ">", SentAt: time.Now()}, nil
}

func (s *recordingSender) sentTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, e := range s.sent {
		out = append(out, e.To)
	}
	return out
}

// ---- notification log ----

type memNotificationLogs struct {
	mu   sync.Mutex
	logs []models.NotificationLog
}

func (m *memNotificationLogs) SaveLog(_ context.Context, log *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memNotificationLogs) GetLogs(_ context.Context, _ models.NotificationFilter) ([]models.NotificationLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs, int64(len(m.logs)), nil
}

// ---- publisher ----

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, e models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

// ---- metrics ----

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: map[string]int{}}
}

func (m *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *countingMetrics) RecordValue(_ context.Context, name string, _ float64, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *countingMetrics) get(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// ---- fixtures ----

type eventOptions struct {
	eventType string
	sessionID string
	amount    int64
	metadata  map[string]string
}

func checkoutEvent(t *testing.T, opts eventOptions) []byte {
	t.Helper()
	if opts.eventType == "" {
		opts.eventType = models.EventCheckoutSessionCompleted
	}
	body, err := json.Marshal(map[string]any{
		"id":     "evt_" + strings.TrimPrefix(opts.sessionID, "sess_"),
		"object": "event",
		"type":   opts.eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":           opts.sessionID,
				"object":       "checkout.session",
				"amount_total": opts.amount,
				"currency":     "eur",
				"metadata":     opts.metadata,
			},
		},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func fullMetadata(products string) map[string]string {
	return map[string]string{
		models.MetadataName:       "Alice Martin",
		models.MetadataEmail:      "alice@example.com",
		models.MetadataAddress:    "12 rue des Lilas",
		models.MetadataCity:       "Lyon",
		models.MetadataPostalCode: "69003",
		models.MetadataProducts:   products,
	}
}

var errBoom = errors.New("boom")

type harness struct {
	orders    *memOrderRepo
	products  *memProductRepo
	email     *recordingSender
	logs      *memNotificationLogs
	publisher *recordingPublisher
	metrics   *countingMetrics
	processor *services.WebhookProcessor
}

func newHarness(t *testing.T, products ...models.Product) *harness {
	t.Helper()
	h := &harness{
		orders:    newMemOrderRepo(),
		products:  newMemProductRepo(products...),
		email:     newRecordingSender(),
		logs:      &memNotificationLogs{},
		publisher: &recordingPublisher{},
		metrics:   newCountingMetrics(),
	}
	logger := zap.NewNop()

	notifier, err := services.NewNotificationDispatcher(h.email, h.logs, services.NotificationConfig{
		ShopName:      "Les Midena",
		FrontendURL:   "https://shop.example.com/",
		OperatorEmail: "shop@example.com",
		SendTimeout:   time.Second,
		MaxAttempts:   1,
	}, h.metrics, logger)
	require.NoError(t, err)

	h.processor = services.NewWebhookProcessor(services.WebhookProcessorDeps{
		Verifier:  services.NewStripeVerifier(testSecret),
		Dedup:     services.NewEventDeduplicator(h.orders),
		Assembler: services.NewOrderAssembler(h.products, time.Second, logger),
		Orders:    h.orders,
		Inventory: services.NewInventoryAdjuster(h.products, time.Second, 2, h.metrics, logger),
		Notifier:  notifier,
		Publisher: h.publisher,
		Metrics:   h.metrics,
		Timeouts:  services.ProcessorTimeouts{Store: time.Second, Publish: time.Second},
		Logger:    logger,
	})
	return h
}
