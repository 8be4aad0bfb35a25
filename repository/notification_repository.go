package repository

import (
	"context"
	"fmt"

	"github.com/MaximeEsteves/backend-lesmidena/models"

	"gorm.io/gorm"
)

// NotificationRepository stores one audit row per customer or operator send.
type NotificationRepository interface {
	SaveLog(ctx context.Context, log *models.NotificationLog) error
	GetLogs(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) SaveLog(ctx context.Context, log *models.NotificationLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("save %s notification log for %s: %w", log.Channel, log.StripeSessionID, err)
	}
	return nil
}

func (r *notificationRepository) GetLogs(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, error) {
	page, size := clampPage(filter.Page, filter.PageSize)

	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.NotificationLog{})
		if filter.StripeSessionID != "" {
			q = q.Where("stripe_session_id = ?", filter.StripeSessionID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Channel != "" {
			q = q.Where("channel = ?", filter.Channel)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.NotificationLog
	err := scoped().
		Order("created_at DESC, id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&logs).Error
	return logs, total, err
}
