package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/MaximeEsteves/backend-lesmidena/apperrors"
	"github.com/MaximeEsteves/backend-lesmidena/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxPageSize     = 100
	defaultPage     = 1
	defaultPageSize = 20
)

func parsePaginationParams(c *gin.Context) (int, int) {
	page := defaultPage
	pageSize := defaultPageSize

	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil && l > 0 {
		pageSize = min(l, maxPageSize)
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

type OrderController struct {
	orders repository.OrderRepository
	logger *zap.Logger
}

func NewOrderController(orders repository.OrderRepository, logger *zap.Logger) *OrderController {
	return &OrderController{orders: orders, logger: logger}
}

func (oc *OrderController) ListOrders(c *gin.Context) {
	page, pageSize := parsePaginationParams(c)

	orders, total, err := oc.orders.FindAll(c.Request.Context(), page, pageSize)
	if err != nil {
		oc.logger.Error("failed to list orders", zap.Error(err))
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        orders,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages(total, pageSize),
	})
}

func (oc *OrderController) GetOrderBySession(c *gin.Context) {
	sessionID := c.Param("session_id")

	order, err := oc.orders.FindBySessionID(c.Request.Context(), sessionID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		apperrors.Respond(c, apperrors.NotFound("Order not found"))
		return
	}
	if err != nil {
		oc.logger.Error("failed to load order", zap.String("session_id", sessionID), zap.Error(err))
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, order)
}
