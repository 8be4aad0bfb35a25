package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/MaximeEsteves/backend-lesmidena/models"
	"github.com/MaximeEsteves/backend-lesmidena/repository"
	"github.com/MaximeEsteves/backend-lesmidena/sender"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	customerTemplate = "customer_receipt.html"
	operatorTemplate = "operator_alert.html"
)

type NotificationConfig struct {
	ShopName      string
	FrontendURL   string
	ContactEmail  string
	OperatorEmail string
	// CustomerFallbackEmail receives the receipt when the session has no usable
	// customer address. Empty means the receipt is skipped.
	CustomerFallbackEmail string
	ReplyTo               string
	SendTimeout           time.Duration
	MaxAttempts           int
	RetryBackoff          time.Duration
}

// NotificationDispatcher renders and sends the customer receipt and the operator
// alert. The two sends are independent: neither outcome affects the other.
type NotificationDispatcher struct {
	email     sender.EmailSender
	logs      repository.NotificationRepository
	cfg       NotificationConfig
	templates *template.Template
	metrics   MetricsRecorder
	logger    *zap.Logger
}

func NewNotificationDispatcher(
	email sender.EmailSender,
	logs repository.NotificationRepository,
	cfg NotificationConfig,
	metrics MetricsRecorder,
	logger *zap.Logger,
) (*NotificationDispatcher, error) {
	tmpls, err := template.New("notifications").Funcs(template.FuncMap{
		"euro": formatEuro,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &NotificationDispatcher{
		email:     email,
		logs:      logs,
		cfg:       cfg,
		templates: tmpls,
		metrics:   metricsOrNoop(metrics),
		logger:    logger,
	}, nil
}

func formatEuro(v float64) string {
	return fmt.Sprintf("%.2f €", v)
}

type lineView struct {
	Label     string
	Reference string
	Quantity  int
	UnitPrice float64
	Subtotal  float64
	ReviewURL string
}

type orderView struct {
	ShopName     string
	SiteURL      string
	ContactEmail string
	OrderID      string
	CustomerName string
	Email        string
	Address      models.ShippingAddress
	Items        []lineView
	Total        float64
	OrderedAt    string
}

func (d *NotificationDispatcher) view(order *models.Order) orderView {
	base := strings.TrimRight(d.cfg.FrontendURL, "/")
	items := make([]lineView, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		review := base
		if li.Reference != "" {
			review = fmt.Sprintf("%s/produit/%s#avis-produit", base, url.PathEscape(li.Reference))
		}
		if review == "" {
			review = "#"
		}
		items = append(items, lineView{
			Label:     strings.TrimSpace(li.Category + " " + li.Name),
			Reference: li.Reference,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Subtotal:  li.Subtotal(),
			ReviewURL: review,
		})
	}
	created := order.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return orderView{
		ShopName:     d.cfg.ShopName,
		SiteURL:      base,
		ContactEmail: d.cfg.ContactEmail,
		OrderID:      order.ID.String(),
		CustomerName: order.CustomerName,
		Email:        order.CustomerEmail,
		Address:      order.ShippingAddress,
		Items:        items,
		Total:        order.Total,
		OrderedAt:    created.Format("02/01/2006 15:04"),
	}
}

// BuildMessages renders both messages. A message whose recipient cannot be
// resolved is returned with an empty To.
func (d *NotificationDispatcher) BuildMessages(order *models.Order) (customer, operator models.NotificationMessage, err error) {
	v := d.view(order)

	customer = models.NotificationMessage{
		To:      order.CustomerEmail,
		Subject: "🛍️ Confirmation de votre commande",
		Channel: models.ChannelCustomer,
	}
	if customer.To == "" {
		customer.To = d.cfg.CustomerFallbackEmail
	}
	if customer.Body, err = d.render(customerTemplate, v); err != nil {
		return customer, operator, err
	}

	operator = models.NotificationMessage{
		To:      d.cfg.OperatorEmail,
		Subject: fmt.Sprintf("🛒 Nouvelle commande n°%s", order.ID),
		Channel: models.ChannelOperator,
	}
	if operator.Body, err = d.render(operatorTemplate, v); err != nil {
		return customer, operator, err
	}
	return customer, operator, nil
}

func (d *NotificationDispatcher) render(name string, v orderView) (string, error) {
	var buf bytes.Buffer
	if err := d.templates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("template %s render failed: %w", name, err)
	}
	return buf.String(), nil
}

// Dispatch sends the customer receipt then the operator alert and reports one
// StageResult per message.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, order *models.Order) []StageResult {
	customer, operator, err := d.BuildMessages(order)
	if err != nil {
		d.logger.Error("Failed to render notifications", zap.String("order_id", order.ID.String()), zap.Error(err))
		return []StageResult{
			stageFailed(StageNotifyClient, err),
			stageFailed(StageNotifyAdmin, err),
		}
	}

	return []StageResult{
		d.deliver(ctx, order, StageNotifyClient, customer, "no customer email on the session"),
		d.deliver(ctx, order, StageNotifyAdmin, operator, "no operator address configured"),
	}
}

func (d *NotificationDispatcher) deliver(ctx context.Context, order *models.Order, stage string, msg models.NotificationMessage, skipReason string) StageResult {
	if msg.To == "" {
		d.logger.Warn("Notification skipped",
			zap.String("order_id", order.ID.String()),
			zap.String("channel", msg.Channel),
			zap.String("reason", skipReason),
		)
		d.saveLog(ctx, order, msg, models.StatusSkipped, 0, "", skipReason)
		return stageSkipped(stage, skipReason)
	}

	email := sender.Email{To: msg.To, Subject: msg.Subject, HTML: msg.Body}
	if msg.Channel == models.ChannelCustomer {
		email.ReplyTo = d.cfg.ReplyTo
	}

	var (
		result   sender.SendResult
		lastErr  error
		attempts int
	)
	for attempts < d.cfg.MaxAttempts {
		if attempts > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(attempts) * d.cfg.RetryBackoff):
			}
			if ctx.Err() != nil {
				break
			}
		}

		attempts++
		result, lastErr = d.send(ctx, email)
		if lastErr == nil {
			break
		}
		d.logger.Warn("Send attempt failed",
			zap.String("order_id", order.ID.String()),
			zap.String("channel", msg.Channel),
			zap.Int("attempt", attempts),
			zap.Error(lastErr),
		)
	}

	dims := map[string]string{"Channel": msg.Channel}
	if lastErr != nil {
		d.logger.Error("Notification lost",
			zap.String("order_id", order.ID.String()),
			zap.String("channel", msg.Channel),
			zap.String("recipient", msg.To),
			zap.Error(lastErr),
		)
		_ = d.metrics.RecordCount(ctx, MetricNotificationsFailed, dims)
		d.saveLog(ctx, order, msg, models.StatusFailed, attempts, "", lastErr.Error())
		return stageFailed(stage, lastErr)
	}

	d.logger.Info("Notification sent",
		zap.String("order_id", order.ID.String()),
		zap.String("channel", msg.Channel),
		zap.String("message_id", result.MessageID),
	)
	_ = d.metrics.RecordCount(ctx, MetricNotificationsSent, dims)
	d.saveLog(ctx, order, msg, models.StatusSent, attempts, result.MessageID, "")
	return stageOK(stage, result.MessageID)
}

func (d *NotificationDispatcher) send(ctx context.Context, email sender.Email) (sender.SendResult, error) {
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}
	return d.email.SendEmail(ctx, email)
}

func (d *NotificationDispatcher) saveLog(ctx context.Context, order *models.Order, msg models.NotificationMessage, status string, attempts int, messageID, errMsg string) {
	if d.logs == nil {
		return
	}
	entry := &models.NotificationLog{
		OrderID:         order.ID,
		StripeSessionID: order.StripeSessionID,
		Recipient:       msg.To,
		Channel:         msg.Channel,
		Status:          status,
		Error:           errMsg,
		Attempts:        attempts,
		MessageID:       messageID,
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.logs.SaveLog(logCtx, entry); err != nil {
		d.logger.Error("failed to save notification log", zap.Error(err))
	}
}
