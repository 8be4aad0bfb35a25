package controllers

import (
	"net/http"

	"github.com/MaximeEsteves/backend-lesmidena/apperrors"
	"github.com/MaximeEsteves/backend-lesmidena/models"
	"github.com/MaximeEsteves/backend-lesmidena/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationController struct {
	logs   repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationController(logs repository.NotificationRepository, logger *zap.Logger) *NotificationController {
	return &NotificationController{logs: logs, logger: logger}
}

// GetNotificationLogs lists delivery outcomes, optionally filtered by status
// (sent, failed, skipped), channel (customer, operator) and session_id.
func (nc *NotificationController) GetNotificationLogs(c *gin.Context) {
	page, pageSize := parsePaginationParams(c)

	filter := models.NotificationFilter{
		Status:          c.Query("status"),
		Channel:         c.Query("channel"),
		StripeSessionID: c.Query("session_id"),
		Page:            page,
		PageSize:        pageSize,
	}

	logs, total, err := nc.logs.GetLogs(c.Request.Context(), filter)
	if err != nil {
		nc.logger.Error("failed to get notification logs", zap.Error(err))
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        logs,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages(total, pageSize),
	})
}
