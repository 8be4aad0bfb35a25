package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MaximeEsteves/backend-lesmidena/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ProductCachePrefix = "product:detail:"

// CachedProductRepository serves catalog lookups from Redis and falls back to the
// wrapped repository. Stock decrements always hit the database and drop the
// cached entry afterwards.
type CachedProductRepository struct {
	next   ProductRepository
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProductRepository(next ProductRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{next: next, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	key := ProductCachePrefix + id

	cached, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var product models.Product
		if err := json.Unmarshal(cached, &product); err == nil {
			return &product, nil
		}
		c.logger.Warn("Failed to unmarshal cached product", zap.String("product_id", id))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	product, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.setAsync(key, product)
	return product, nil
}

func (c *CachedProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (int, error) {
	stock, err := c.next.DecrementStock(ctx, id, quantity)
	if err != nil {
		return 0, err
	}
	if err := c.redis.Del(ctx, ProductCachePrefix+id).Err(); err != nil {
		c.logger.Warn("Failed to delete product cache", zap.String("product_id", id), zap.Error(err))
	}
	return stock, nil
}

func (c *CachedProductRepository) setAsync(key string, product *models.Product) {
	payload, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn("Failed to marshal product for cache", zap.String("product_id", product.ID), zap.Error(err))
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.redis.Set(bgCtx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache product", zap.String("key", key), zap.Error(err))
		}
	}()
}
