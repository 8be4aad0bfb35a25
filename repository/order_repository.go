package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/MaximeEsteves/backend-lesmidena/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderConflict means another delivery already stored an order for the same session.
	ErrOrderConflict = errors.New("order already exists for stripe session")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	Insert(ctx context.Context, order *models.Order) error
	FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func orderedLineItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindBySessionID retrieves the order created for a Stripe checkout session
func (r *GormOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order

	err := r.db.WithContext(ctx).
		Preload("LineItems", orderedLineItems).
		Where("stripe_session_id = ?", sessionID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order by session: %w", err)
	}
	return &order, nil
}

// Insert stores the order and its line items in one transaction. The order row is
// written with ON CONFLICT DO NOTHING on the session id, so of two concurrent
// deliveries exactly one inserts and the other gets ErrOrderConflict.
func (r *GormOrderRepository) Insert(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.LineItems {
		if order.LineItems[i].ID == uuid.Nil {
			order.LineItems[i].ID = uuid.New()
		}
		order.LineItems[i].OrderID = order.ID
		order.LineItems[i].Position = i
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "stripe_session_id"}},
				DoNothing: true,
			}).
			Create(order)
		if res.Error != nil {
			return fmt.Errorf("insert order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrOrderConflict
		}

		if len(order.LineItems) == 0 {
			return nil
		}
		if err := tx.Create(&order.LineItems).Error; err != nil {
			return fmt.Errorf("insert order line items: %w", err)
		}
		return nil
	})
}

// FindAll retrieves all orders with pagination
func (r *GormOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit = clampPage(page, limit)
	offset := (page - 1) * limit
	if err := query.
		Preload("LineItems", orderedLineItems).
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// clampPage keeps admin listings to pages of 1 to 100 rows, 10 by default.
func clampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size < 1:
		size = 10
	case size > 100:
		size = 100
	}
	return page, size
}
