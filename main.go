package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"go_trading_automation/config"
	"go_trading_automation/models"
	"go_trading_automation/repository"
	"go_trading_automation/routes"
	"go_trading_automation/scheduler"
	"go_trading_automation/services/audit"
	"go_trading_automation/services/conflict"
	"go_trading_automation/services/credentials"
	"go_trading_automation/services/execarchive"
	"go_trading_automation/services/marketdata"
	"go_trading_automation/services/notify"
	"go_trading_automation/services/orchestrator"
	"go_trading_automation/services/realtime"
	"go_trading_automation/services/schedule"
	"go_trading_automation/services/signals"
	"go_trading_automation/services/tasks"
	"go_trading_automation/services/trading"
)

// dbInitialized tracks whether database has been successfully initialized.
// Guarded by dbInitMutex so the /ready endpoint can check it from any
// goroutine.
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	// Task workers re-exec this binary with the run-task argument.
	if len(os.Args) > 1 && os.Args[1] == "run-task" {
		runTaskWorker(os.Args[2:])
		return
	}

	log.Println("==============================================")
	log.Println("  Trading Automation API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up. Database is initialized in background.
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server immediately so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database and setup routes in background
	var jobScheduler *scheduler.Scheduler
	var tradingService *trading.Service
	var hub *realtime.Hub
	var auditLog *audit.Log
	var archive *execarchive.Archive

	go func() {
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		log.Println("Running database migrations...")
		if err := runMigrations(); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		if err := models.SeedDefaultAdminUser(db, cfg.AdminPassword); err != nil {
			log.Printf("Warning: Could not seed admin user: %v", err)
		}

		// Repositories
		scheduleRepo := repository.NewScheduleRepository(db)
		statusRepo := repository.NewStatusRepository(db)
		unifiedRepo := repository.NewUnifiedStatusRepository(db)
		executionRepo := repository.NewExecutionRepository(db)
		signalRepo := repository.NewSignalRepository(db)
		notificationRepo := repository.NewNotificationRepository(db)
		tenantRepo := repository.NewTenantRepository(db)

		if _, err := scheduleRepo.SeedDefaultsIfEmpty(); err != nil {
			log.Printf("Warning: Could not seed default schedules: %v", err)
		}

		// Supporting services
		auditLog, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			log.Fatalf("Failed to open audit log: %v", err)
		}

		archive, err = execarchive.New(cfg.MongoURI)
		if err != nil {
			log.Printf("Execution archive disabled: %v", err)
			archive, _ = execarchive.New("")
		}

		masterKey := cfg.CredentialMasterKey
		if masterKey == "" {
			log.Println("Warning: CREDENTIAL_MASTER_KEY not set, using insecure development key")
			masterKey = "dev-insecure-master-key"
		}
		vault, err := credentials.NewVault(masterKey)
		if err != nil {
			log.Fatalf("Failed to initialize credential vault: %v", err)
		}

		hub = realtime.NewHub()
		emailSender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, tenantRepo)
		notifier := notify.NewNotifier(notificationRepo, hub, emailSender, notificationRepo)

		// Core domain services
		scheduleManager := schedule.NewManager()
		lifecycle, err := signals.NewLifecycle(signalRepo, cfg.ReactivationCutoff)
		if err != nil {
			log.Fatalf("Failed to initialize signal lifecycle: %v", err)
		}

		quoter := marketdata.NewQuoter()
		executor := tasks.NewDefaultExecutor(signalRepo, lifecycle, quoter,
			&tasks.WatchlistSource{Tickers: cfg.Watchlist, Quotes: quoter})

		detector := conflict.NewDetector(unifiedRepo, statusRepo)
		manager := orchestrator.NewManager(
			scheduleRepo, statusRepo, executionRepo, detector,
			scheduleManager, executor, orchestrator.NewExecController(),
			notifier, auditLog,
		)

		tradingService = trading.NewService(
			tenantRepo, unifiedRepo, vault, scheduleRepo,
			scheduleManager, executor, auditLog, cfg.ArtifactDir,
		)

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, &routes.Deps{
			DB:              db,
			Manager:         manager,
			TradingService:  tradingService,
			Lifecycle:       lifecycle,
			ScheduleManager: scheduleManager,
			Schedules:       scheduleRepo,
			Executions:      executionRepo,
			Archive:         archive,
			Notifications:   notificationRepo,
			Tenants:         tenantRepo,
			Vault:           vault,
			Audit:           auditLog,
			Hub:             hub,
		})

		// Start system background jobs
		jobScheduler = scheduler.NewScheduler(manager, lifecycle, statusRepo, executionRepo, archive)
		go jobScheduler.Start()

		log.Println("Application fully initialized with database")
	}()

	gracefulShutdown(server, func() {
		if jobScheduler != nil {
			jobScheduler.Stop()
		}
		if tradingService != nil {
			tradingService.StopAll()
		}
		if hub != nil {
			hub.Shutdown()
		}
		if archive != nil {
			if err := archive.Close(); err != nil {
				log.Printf("Error closing execution archive: %v", err)
			}
		}
		if auditLog != nil {
			if err := auditLog.Close(); err != nil {
				log.Printf("Error closing audit log: %v", err)
			}
		}
	})
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	if err := models.MigrateScheduleModels(db); err != nil {
		return err
	}
	if err := models.MigrateStatusModels(db); err != nil {
		return err
	}
	if err := models.MigrateExecutionModels(db); err != nil {
		return err
	}
	if err := models.MigrateSignalModels(db); err != nil {
		return err
	}
	if err := models.MigrateNotificationModels(db); err != nil {
		return err
	}
	if err := models.MigrateTenantModels(db); err != nil {
		return err
	}
	if err := models.MigrateAdminModels(db); err != nil {
		return err
	}

	return nil
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Trading Automation API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, stopServices func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	stopServices()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
