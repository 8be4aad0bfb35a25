package services

import "context"

// Business metric names emitted by the pipeline.
const (
	MetricOrdersCreated       = "OrdersCreated"
	MetricWebhookDuplicates   = "WebhookDuplicates"
	MetricWebhookRejected     = "WebhookSignatureRejected"
	MetricCatalogMisses       = "CatalogMisses"
	MetricInventoryLow        = "InventoryLowStock"
	MetricInventoryFailures   = "InventoryAdjustFailures"
	MetricNotificationsSent   = "NotificationsSent"
	MetricNotificationsFailed = "NotificationsFailed"
)

// MetricsRecorder is satisfied by the CloudWatch metrics client.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
}

type noopMetrics struct{}

func (noopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }

func (noopMetrics) RecordValue(context.Context, string, float64, map[string]string) error {
	return nil
}

func metricsOrNoop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
