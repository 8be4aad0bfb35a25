package routes

import (
	"github.com/MaximeEsteves/backend-lesmidena/controllers"
	"github.com/MaximeEsteves/backend-lesmidena/middleware"

	"github.com/gin-gonic/gin"
)

type Controllers struct {
	Webhook       *controllers.WebhookController
	Orders        *controllers.OrderController
	Notifications *controllers.NotificationController
	Health        *controllers.HealthController
}

type Options struct {
	JWTSecret    string
	AdminLimiter *middleware.RateLimiter
	// CORSOrigins lists the back-office origins allowed to call the admin routes.
	CORSOrigins []string
}

func RegisterRoutes(router *gin.Engine, ctrl Controllers, opts Options) {
	// Engine-level so preflights for admin paths are answered before routing.
	router.Use(middleware.CORS(opts.CORSOrigins))

	router.GET("/health", ctrl.Health.Health)

	// Stripe needs the raw body, so nothing on this route may read or bind it.
	router.POST("/stripe/webhook", ctrl.Webhook.StripeWebhook)

	admin := router.Group("/", opts.AdminLimiter.Middleware(), middleware.AdminOnly(opts.JWTSecret))
	{
		admin.GET("/orders", ctrl.Orders.ListOrders)
		admin.GET("/orders/session/:session_id", ctrl.Orders.GetOrderBySession)
		admin.GET("/notifications/log", ctrl.Notifications.GetNotificationLogs)
	}
}
