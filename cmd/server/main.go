package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"distill/internal/config"
	"distill/internal/database"
	"distill/internal/distill"
	"distill/internal/handlers"
	"distill/internal/jobs"
	"distill/internal/logging"
	"distill/internal/middleware"
	"distill/internal/ratelimit"
	"distill/internal/services"
	"distill/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Distill Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Initialize MongoDB
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}
	log.Println("🔗 Connecting to MongoDB...")
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())
	log.Println("✅ MongoDB connected successfully")

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize database indexes: %v", err)
	}

	// Initialize Redis service (for usage quotas)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (usage quotas disabled)", err)
			redisService = nil
		} else {
			defer redisService.Close()
			log.Println("✅ Redis connected successfully")
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - usage quotas disabled")
	}

	// Initialize JWT auth
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("✅ JWT auth initialized")
	} else {
		if os.Getenv("ENVIRONMENT") == "production" {
			log.Fatal("❌ JWT_SECRET is required in production")
		}
		log.Println("⚠️ JWT_SECRET not set - auth disabled (development mode only)")
	}

	// Initialize Prometheus metrics
	services.InitMetrics()
	log.Println("✅ Prometheus metrics initialized")

	// Load the distillation lexicon
	lexicon, err := config.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		log.Fatalf("❌ Failed to load lexicon: %v", err)
	}
	engine := distill.NewEngine(lexicon)
	if cfg.LexiconPath != "" {
		log.Printf("✅ Distillation engine initialized (lexicon: %s)", cfg.LexiconPath)
	} else {
		log.Println("✅ Distillation engine initialized (built-in lexicon)")
	}

	// Initialize services
	userService := services.NewUserService(mongoDB, jwtAuth)
	conversationService := services.NewConversationService(mongoDB)
	promptService := services.NewPromptService(mongoDB)
	eventService := services.NewEventService(mongoDB)
	dashboardService := services.NewDashboardService(eventService, cfg.DashboardCacheTTL)
	usageLimiter := services.NewUsageLimiterService(redisService, cfg.DailyCaptureLimit, cfg.DailyDistillLimit)
	log.Println("✅ Services initialized")

	// Per-user ingest throttle (in-process, on top of the HTTP limiter)
	ingestLimiter := ratelimit.NewRateLimiter(100, 10, 20)

	// Initialize background jobs
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	retentionJob := jobs.NewRetentionCleanupJob(eventService, cfg.EventRetentionDays)
	if err := scheduler.Register(cfg.RetentionSchedule, retentionJob); err != nil {
		log.Fatalf("❌ Failed to register retention job: %v", err)
	}
	scheduler.Start()
	log.Printf("🕐 Background jobs: event retention cleanup (%s, keep %d days)", cfg.RetentionSchedule, cfg.EventRetentionDays)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:        "Distill v1.0",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		BodyLimit:      10 * 1024 * 1024, // 10MB - full-chat captures can carry long conversations
		ReadBufferSize: 16384,            // 16KB for request headers (privacy browsers send extra headers)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("distill")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Auth=%d/min, Capture=%d/min, Ingest=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AuthenticatedMax,
		rateLimitConfig.CaptureMax,
		rateLimitConfig.IngestMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		// Default to localhost for development
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins.
	allowCredentials := allowedOrigins != "*"

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Session-Id",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	// Global API rate limiter - first line of DDoS defense
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(mongoDB, redisService)
	authHandler := handlers.NewAuthHandler(userService, eventService)
	conversationHandler := handlers.NewConversationHandler(conversationService, usageLimiter, eventService)
	distillHandler := handlers.NewDistillHandler(engine, conversationService, promptService, eventService, usageLimiter, cfg.DefaultMaxLength)
	promptHandler := handlers.NewPromptHandler(promptService, eventService)
	eventHandler := handlers.NewEventHandler(eventService, ingestLimiter)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	// Routes
	app.Get("/health", healthHandler.Health)

	api := app.Group("/api")

	// Account registration and login
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Get("/me", middleware.LocalAuthMiddleware(jwtAuth), authHandler.Me)

	// Conversation capture (authenticated, capture-throttled)
	conversations := api.Group("/conversations", middleware.LocalAuthMiddleware(jwtAuth))
	conversations.Post("/", middleware.CaptureRateLimiter(rateLimitConfig), conversationHandler.Capture)
	conversations.Get("/", conversationHandler.List)
	conversations.Get("/:id", conversationHandler.Get)
	conversations.Post("/:id/messages", conversationHandler.AppendMessages)
	conversations.Delete("/:id", conversationHandler.Delete)

	// Distillation (authenticated)
	api.Post("/distill", middleware.LocalAuthMiddleware(jwtAuth), middleware.AuthenticatedRateLimiter(rateLimitConfig), distillHandler.Distill)

	// Prompt library (authenticated)
	prompts := api.Group("/prompts", middleware.LocalAuthMiddleware(jwtAuth))
	prompts.Get("/", promptHandler.List)
	prompts.Get("/public", promptHandler.ListPublic)
	prompts.Get("/:id", promptHandler.Get)
	prompts.Put("/:id", promptHandler.Update)
	prompts.Post("/:id/run", promptHandler.Run)
	prompts.Post("/:id/rating", promptHandler.Rate)
	prompts.Delete("/:id", promptHandler.Delete)

	// Analytics ingest (auth optional - pre-signup events carry a session ID)
	events := api.Group("/events", middleware.OptionalLocalAuthMiddleware(jwtAuth), middleware.IngestRateLimiter(rateLimitConfig))
	events.Post("/", eventHandler.Ingest)
	events.Post("/batch", eventHandler.IngestBatch)

	// Dashboard (authenticated)
	api.Get("/dashboard/metrics", middleware.LocalAuthMiddleware(jwtAuth), dashboardHandler.GetMetrics)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop background jobs
		scheduler.Stop()

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
