package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/MaximeEsteves/backend-lesmidena/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrProductNotFound = errors.New("product not found")

// ProductRepository is the catalog as seen by the fulfillment pipeline: lookups
// by id and a stock decrement.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	// DecrementStock removes quantity from the product stock, never going below
	// zero, and returns the stock left.
	DecrementStock(ctx context.Context, id string, quantity int) (int, error)
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return &product, nil
}

// DecrementStock runs a single UPDATE so concurrent orders on the same product
// cannot lose each other's decrement.
func (r *GormProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (int, error) {
	var product models.Product
	res := r.db.WithContext(ctx).
		Model(&product).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("GREATEST(stock - ?, 0)", quantity))
	if res.Error != nil {
		return 0, fmt.Errorf("decrement stock for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrProductNotFound
	}
	return product.Stock, nil
}
