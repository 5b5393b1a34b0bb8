package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"payrecon-backend/internal/shared/middleware"
	"payrecon-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	v1 := router.Group("/api/v1")
	{
		// Health check
		v1.GET("/health", healthCheckHandler(c))

		setupWebhookRoutes(v1, c)
		setupPaymentRoutes(v1, c)
		setupOpsRoutes(v1, c)
	}

	return router
}

// ========================================
// WEBHOOK ROUTES
// ========================================
// Webhooks authenticate with the gateway signature, not a bearer
// token, so they stay outside the auth middleware.
func setupWebhookRoutes(v1 *gin.RouterGroup, c *container.Container) {
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/razorpay", c.WebhookHandler.HandleRazorpayWebhook)
	}
}

// ========================================
// PAYMENT ROUTES
// ========================================
func setupPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	payments := v1.Group("/payments")
	payments.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		payments.POST("", c.PaymentHandler.CreatePaymentIntent)
		payments.GET("/:payment_id", c.PaymentHandler.GetPaymentStatus)
		payments.GET("/:payment_id/audit", c.PaymentHandler.GetAuditTrail)
		payments.POST("/:payment_id/corrections", middleware.AdminMiddleware(), c.PaymentHandler.CorrectPayment)
	}
}

// ========================================
// OPS ROUTES
// ========================================
func setupOpsRoutes(v1 *gin.RouterGroup, c *container.Container) {
	ops := v1.Group("/ops")
	ops.Use(middleware.AuthMiddleware(c.JWTManager), middleware.AdminMiddleware())
	{
		ops.GET("/escalations", c.PaymentHandler.ListEscalations)
		ops.GET("/failed-events", c.PaymentHandler.ListFailedEvents)
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   getEnv("APP_VERSION", "1.0.0"),
			"services":  gin.H{},
		}

		// Check database
		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
			health["status"] = "degraded"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.DB.HealthCheck(ctx); err != nil {
				dbStatus = fmt.Sprintf("error: %v", err)
				health["status"] = "degraded"
			}
		}

		// Check redis. The API survives without it, so a redis outage
		// degrades the report but not the status code.
		redisStatus := "ok"
		if appCtx.Cache == nil {
			redisStatus = "disconnected"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.Cache.Ping(ctx); err != nil {
				redisStatus = fmt.Sprintf("error: %v", err)
			}
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		}

		statusCode := http.StatusOK
		if dbStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
