package main

import (
	"log"
	"os"

	"photo-qc-api/config"
	"photo-qc-api/controllers"
	"photo-qc-api/middleware"
	"photo-qc-api/monitor"
	"photo-qc-api/routes"
	"photo-qc-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, err := config.InitLogging()
	if err != nil {
		log.Printf("⚠️ Logging to stdout only: %v", err)
	} else {
		defer logFile.Close()
	}

	settings := config.LoadSettings()
	if settings.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}

	// Initialize database
	config.InitDB()

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter

	content, err := services.NewLocalContentStore(settings.UploadPath, settings.PublicBaseURL)
	if err != nil {
		log.Fatal("❌ Failed to prepare upload directory:", err)
	}

	var events services.EventPublisher = services.NoopEventPublisher{}
	if settings.KafkaBroker != "" {
		kafka := services.NewKafkaEventPublisher(settings.KafkaBroker, settings.KafkaTopic)
		defer kafka.Close()
		events = kafka
		log.Printf("📨 Publishing submission events to %s (topic %s)", settings.KafkaBroker, settings.KafkaTopic)
	}

	var notifier services.Notifier
	if config.MailConfigured() {
		notifier = services.NewMailNotifier(config.SendMail)
	}

	access := services.NewAccessService(config.DB)
	audit := services.NewAuditService(config.DB, access, settings.MaxCommentChars)
	handlers := &controllers.Handlers{
		Lifecycle: services.NewLifecycleService(config.DB, access, audit, services.LifecycleDeps{
			Content:  content,
			Codes:    services.InitialsCodeProvider{},
			Events:   events,
			Notifier: notifier,
		}),
		Audit:          audit,
		History:        services.NewHistoryService(config.DB, access, settings.MaxChainDepth),
		Query:          services.NewQueryService(config.DB, access, content),
		Access:         access,
		MaxUploadBytes: settings.MaxUploadBytes,
	}

	// Create Gin router
	router := gin.New()
	router.MaxMultipartMemory = settings.MaxUploadBytes

	router.Use(middleware.RequestIDMiddleware())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	router.Use(middleware.CORSMiddleware(settings.AllowedOrigins))

	// Register /logs route early (before 404 catch-all in SetupRoutes)
	monitor.RegisterLogsRoute(router, config.LogFilePath(), settings.LogsToken)
	monitor.RegisterMonitorPage(router, settings.LogsToken)

	routes.SetupRoutes(router, handlers, settings.JWTSecret)

	log.Printf("🚀 Server starting on port %s", settings.ServerPort)
	if ginMode == "release" {
		log.Printf("🏭 Running in production mode")
	} else {
		log.Printf("🔧 Running in development mode")
	}

	if err := router.Run(":" + settings.ServerPort); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}
