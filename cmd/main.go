package main

import (
	"context"

	"github.com/AsadRay/Mini-Invoice-SaaS/internal/handler"
	"github.com/AsadRay/Mini-Invoice-SaaS/internal/middleware"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/config"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/database"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/jwtutil"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/logger"
	"github.com/AsadRay/Mini-Invoice-SaaS/pkg/mailer"
	"github.com/AsadRay/Mini-Invoice-SaaS/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting invoice service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Start the email dispatch worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := mailer.NewDispatcher(mailer.NewSMTPSender(cfg.Mail), cfg.Mail.QueueSize, log)
	dispatcher.Start(ctx)
	handler.InitMailer(dispatcher, cfg.Mail)
	log.Info("Email dispatcher started")

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/verify", handler.Verify)
	auth.POST("/login", handler.Login)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// User management
	users := api.Group("/users")
	users.GET("/profile", handler.GetProfile)
	users.PATCH("/profile", handler.UpdateProfile)
	users.POST("/change-password", handler.ChangePassword)

	// Client management
	clients := api.Group("/clients")
	clients.POST("", handler.CreateClient)
	clients.GET("", handler.ListClients)
	clients.GET("/:id", handler.GetClient)
	clients.PUT("/:id", handler.UpdateClient)
	clients.DELETE("/:id", handler.DeleteClient)

	// Invoice lifecycle
	invoices := api.Group("/invoices")
	invoices.POST("", handler.CreateInvoice)
	invoices.GET("", handler.ListInvoices)
	invoices.GET("/:id", handler.GetInvoice)
	invoices.PUT("/:id", handler.UpdateInvoice)
	invoices.POST("/:id/mark-paid", handler.MarkInvoicePaid)
	invoices.DELETE("/:id", handler.DeleteInvoice)
	invoices.GET("/:id/pdf", handler.DownloadInvoicePDF)
	invoices.POST("/:id/email", handler.EmailInvoice)
	invoices.POST("/:id/reminder", handler.SendReminder)

	// Dashboard and reports
	api.GET("/dashboard", handler.Dashboard)
	api.GET("/reports", handler.Reports)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
