package api

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/platformhq/licensing/internal/api/v1"
	"github.com/platformhq/licensing/internal/rest/middleware"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Webhook      *v1.WebhookHandler
	License      *v1.LicenseHandler
	Usage        *v1.UsageHandler
	Subscription *v1.SubscriptionHandler
	Billing      *v1.BillingHandler
	Jobs         *v1.JobsHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Webhook routes
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/payment", handlers.Webhook.HandleWebhook)
	}

	// License routes
	licenses := router.Group("/licenses")
	{
		licenses.GET("/:tenant_id", handlers.License.GetLicense)
		licenses.GET("/:tenant_id/access", handlers.License.CheckFeatureAccess)
		licenses.GET("/:tenant_id/limits", handlers.License.GetUsageLimits)
		licenses.GET("/:tenant_id/upgrade-suggestions", handlers.License.GetUpgradeSuggestions)
	}

	// Usage routes
	usage := router.Group("/usage")
	{
		usage.POST("/:tenant_id/track", handlers.Usage.TrackUsage)
		usage.GET("/:tenant_id/limits/:feature_code", handlers.Usage.CheckFeatureLimit)
	}

	// Subscription routes
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.PUT("/:id", handlers.Subscription.UpdateSubscription)
		subscriptions.DELETE("/:id", handlers.Subscription.CancelSubscription)
	}

	// Tenant scoped routes
	tenants := router.Group("/tenants")
	{
		tenants.GET("/:tenant_id/subscription", handlers.Subscription.GetCurrentSubscription)
	}

	// Billing routes
	billing := router.Group("/billing")
	{
		billing.POST("/:tenant_id/usage", handlers.Billing.ProcessUsageBasedBilling)
		billing.GET("/:tenant_id/analytics", handlers.Billing.GetBillingAnalytics)
		billing.GET("/:tenant_id/events", handlers.Billing.ListBillingEvents)
		billing.POST("/:tenant_id/payment-methods", handlers.Billing.AddPaymentMethod)
		billing.DELETE("/:tenant_id/payment-methods/:payment_method_id", handlers.Billing.RemovePaymentMethod)
	}

	// Scheduler introspection
	jobs := router.Group("/jobs")
	{
		jobs.GET("", handlers.Jobs.ListJobs)
	}
}
