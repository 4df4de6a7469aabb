package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go_trading_automation/controllers"
	"go_trading_automation/middleware"
	"go_trading_automation/repository"
	"go_trading_automation/services/audit"
	"go_trading_automation/services/credentials"
	"go_trading_automation/services/execarchive"
	"go_trading_automation/services/orchestrator"
	"go_trading_automation/services/realtime"
	"go_trading_automation/services/schedule"
	"go_trading_automation/services/signals"
	"go_trading_automation/services/trading"
)

// Deps holds the constructed services the API wires together
type Deps struct {
	DB              *gorm.DB
	Manager         *orchestrator.Manager
	TradingService  *trading.Service
	Lifecycle       *signals.Lifecycle
	ScheduleManager *schedule.Manager
	Schedules       *repository.ScheduleRepository
	Executions      *repository.ExecutionRepository
	Archive         *execarchive.Archive
	Notifications   *repository.NotificationRepository
	Tenants         *repository.TenantRepository
	Vault           *credentials.Vault
	Audit           *audit.Log
	Hub             *realtime.Hub
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps *Deps) {
	// Initialize controllers
	authController := controllers.NewAuthController(deps.DB)
	automationController := controllers.NewAutomationController(deps.Manager, deps.Executions, deps.Archive, deps.Audit)
	scheduleController := controllers.NewScheduleController(deps.Schedules, deps.ScheduleManager)
	signalController := controllers.NewSignalController(deps.Lifecycle)
	tradingController := controllers.NewTradingController(deps.TradingService, deps.Tenants, deps.Vault)
	notificationController := controllers.NewNotificationController(deps.Notifications)

	// API v1 group
	api := router.Group("/api/v1")

	// Public auth routes
	auth := api.Group("/auth")
	auth.Use(middleware.LoginRateLimitMiddleware())
	{
		auth.POST("/login", authController.Login)
	}

	// Everything below requires a valid admin token
	protected := api.Group("")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		// Schedule routes
		schedules := protected.Group("/schedules")
		{
			schedules.GET("", scheduleController.ListSchedules)
			schedules.PUT("/:task", scheduleController.UpdateSchedule)
			schedules.POST("/:task/enabled", scheduleController.SetEnabled)
		}

		protected.GET("/tenants", tradingController.ListTenants)

		// Per-tenant task service routes
		tenants := protected.Group("/tenants/:tenant_id")
		{
			tenants.GET("/tasks", automationController.GetStatus)
			tenants.POST("/tasks/:task/start", automationController.StartService)
			tenants.POST("/tasks/:task/stop", automationController.StopService)
			tenants.POST("/tasks/:task/run", automationController.RunOnce)
			tenants.GET("/executions", automationController.ListExecutions)
			tenants.GET("/executions/archive", automationController.ListArchivedExecutions)
			tenants.GET("/audit", automationController.ListAuditEvents)

			// Unified trading service
			tenants.POST("/trading/start", tradingController.StartUnified)
			tenants.POST("/trading/stop", tradingController.StopUnified)
			tenants.GET("/trading/status", tradingController.GetUnifiedStatus)
			tenants.PUT("/credentials", tradingController.SetCredentials)

			// Notifications
			tenants.GET("/notifications", notificationController.ListNotifications)
			tenants.PUT("/notifications/preferences", notificationController.UpdatePreference)
		}

		protected.GET("/trading/active", tradingController.ListActiveServices)

		// Signal routes
		signalRoutes := protected.Group("/signals")
		{
			signalRoutes.GET("/active", signalController.ListActive)
			signalRoutes.POST("/:id/traded", signalController.MarkTraded)
			signalRoutes.POST("/:id/rejected", signalController.MarkRejected)
			signalRoutes.POST("/:id/reactivate", signalController.Reactivate)
		}
	}

	// WebSocket event stream, one connection per tenant
	router.GET("/ws/tenants/:tenant_id", func(c *gin.Context) {
		tenantID, err := strconv.ParseUint(c.Param("tenant_id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant id"})
			return
		}
		deps.Hub.HandleWebSocket(c.Writer, c.Request, uint(tenantID))
	})
}
