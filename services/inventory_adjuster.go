package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MaximeEsteves/backend-lesmidena/models"
	"github.com/MaximeEsteves/backend-lesmidena/repository"

	"go.uber.org/zap"
)

// InventoryAdjuster takes the ordered quantities out of stock. Failures are per
// product and never undo the order.
type InventoryAdjuster struct {
	products          repository.ProductRepository
	timeout           time.Duration
	lowStockThreshold int
	metrics           MetricsRecorder
	logger            *zap.Logger
}

func NewInventoryAdjuster(products repository.ProductRepository, timeout time.Duration, lowStockThreshold int, metrics MetricsRecorder, logger *zap.Logger) *InventoryAdjuster {
	return &InventoryAdjuster{
		products:          products,
		timeout:           timeout,
		lowStockThreshold: lowStockThreshold,
		metrics:           metricsOrNoop(metrics),
		logger:            logger,
	}
}

// Adjust decrements stock for every line item. The result is StageOK when every
// product was updated, StageFailed (with the joined errors) otherwise.
func (a *InventoryAdjuster) Adjust(ctx context.Context, order *models.Order) StageResult {
	if len(order.LineItems) == 0 {
		return stageSkipped(StageInventory, "no line items")
	}

	var errs []error
	updated := 0
	for _, item := range order.LineItems {
		stock, err := a.decrement(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				a.logger.Warn("Product vanished before stock update, skipping",
					zap.String("order_id", order.ID.String()),
					zap.String("product_id", item.ProductID),
				)
			} else {
				a.logger.Warn("Stock update failed, skipping product",
					zap.String("order_id", order.ID.String()),
					zap.String("product_id", item.ProductID),
					zap.Error(err),
				)
			}
			_ = a.metrics.RecordCount(ctx, MetricInventoryFailures, map[string]string{"ProductID": item.ProductID})
			errs = append(errs, fmt.Errorf("product %s: %w", item.ProductID, err))
			continue
		}

		updated++
		a.logger.Info("Stock decremented",
			zap.String("product_id", item.ProductID),
			zap.Int("quantity", item.Quantity),
			zap.Int("stock_left", stock),
		)
		if stock <= a.lowStockThreshold {
			_ = a.metrics.RecordValue(ctx, MetricInventoryLow, float64(stock), map[string]string{"ProductID": item.ProductID})
		}
	}

	if len(errs) > 0 {
		return stageFailed(StageInventory, errors.Join(errs...))
	}
	return stageOK(StageInventory, fmt.Sprintf("%d products updated", updated))
}

func (a *InventoryAdjuster) decrement(ctx context.Context, productID string, quantity int) (int, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.products.DecrementStock(ctx, productID, quantity)
}
