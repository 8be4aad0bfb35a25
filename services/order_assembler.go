package services

import (
	"context"
	"errors"
	"time"

	"github.com/MaximeEsteves/backend-lesmidena/models"
	"github.com/MaximeEsteves/backend-lesmidena/repository"

	"go.uber.org/zap"
)

// OrderAssembler resolves the session cart against the catalog and builds the
// order to persist. It never fails: unresolvable entries become warnings.
type OrderAssembler struct {
	catalog       repository.ProductRepository
	lookupTimeout time.Duration
	logger        *zap.Logger
}

func NewOrderAssembler(catalog repository.ProductRepository, lookupTimeout time.Duration, logger *zap.Logger) *OrderAssembler {
	return &OrderAssembler{catalog: catalog, lookupTimeout: lookupTimeout, logger: logger}
}

func (a *OrderAssembler) Assemble(ctx context.Context, sess *models.CheckoutSession) (*models.Order, []AssemblyWarning) {
	var warnings []AssemblyWarning

	items := make([]models.OrderLineItem, 0, len(sess.Metadata.Cart))
	for _, entry := range sess.Metadata.Cart {
		product, err := a.lookup(ctx, entry.ID)
		if err != nil {
			code := WarnCatalogError
			if errors.Is(err, repository.ErrProductNotFound) {
				code = WarnCatalogMiss
			}
			a.logger.Warn("Cart entry dropped from order",
				zap.String("session_id", sess.ID),
				zap.String("product_id", entry.ID),
				zap.String("reason", code),
				zap.Error(err),
			)
			warnings = append(warnings, AssemblyWarning{Code: code, ProductID: entry.ID, Detail: err.Error()})
			continue
		}
		items = append(items, snapshotLineItem(product, entry.Quantity, len(items)))
	}

	meta := sess.Metadata
	return &models.Order{
		CustomerName:  meta.Name,
		CustomerEmail: meta.Email,
		ShippingAddress: models.ShippingAddress{
			Street:     meta.Address,
			City:       meta.City,
			PostalCode: meta.PostalCode,
		},
		LineItems:       items,
		Total:           models.MinorToDecimal(sess.AmountTotal),
		AmountTotal:     sess.AmountTotal,
		Currency:        sess.Currency,
		StripeSessionID: sess.ID,
	}, warnings
}

func (a *OrderAssembler) lookup(ctx context.Context, productID string) (*models.Product, error) {
	if a.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.lookupTimeout)
		defer cancel()
	}
	return a.catalog.FindByID(ctx, productID)
}

func snapshotLineItem(p *models.Product, quantity, position int) models.OrderLineItem {
	if quantity <= 0 {
		quantity = 1
	}
	return models.OrderLineItem{
		Position:  position,
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Quantity:  quantity,
		UnitPrice: p.Price,
		Reference: p.ReferenceOrID(),
	}
}
