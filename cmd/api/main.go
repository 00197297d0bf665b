package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/config"
	"github.com/primaruang/realty-crm-be/internal/core/analysis"
	"github.com/primaruang/realty-crm-be/internal/core/auth"
	"github.com/primaruang/realty-crm-be/internal/core/maintenance"
	"github.com/primaruang/realty-crm-be/internal/core/ratelimit"
	"github.com/primaruang/realty-crm-be/internal/core/realtime"
	"github.com/primaruang/realty-crm-be/internal/database"
	"github.com/primaruang/realty-crm-be/internal/handlers"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
	"github.com/primaruang/realty-crm-be/internal/services"
	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

const pipelineRunTimeout = 60 * time.Second

func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env)
	log.Printf("🚀 Starting realty-crm-be on port %s", cfg.Port)

	db := database.NewDB(cfg.DatabaseURL, cfg.Env)
	defer database.Close(db)

	// Repositories
	userRepo := repositories.NewUserRepo(db)
	leadRepo := repositories.NewLeadRepo(db)
	convRepo := repositories.NewConversationRepo(db)
	msgRepo := repositories.NewMessageRepo(db)
	dashboardRepo := repositories.NewDashboardRepo(db)

	// Realtime: local hub, plus the redis bridge when configured. A broken
	// redis is degraded to single-instance mode, not a startup failure.
	hub := realtime.NewHub()
	go hub.Run()

	var bus *realtime.Bus
	if cfg.RedisAddr != "" {
		var err error
		bus, err = realtime.NewBus(cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			utils.LogWarn("redis unavailable, running single-instance broadcast", map[string]interface{}{
				"addr":  cfg.RedisAddr,
				"error": err.Error(),
			})
			bus = nil
		}
	}
	gateway := realtime.NewGateway(hub, bus)

	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	if err := gateway.Start(busCtx); err != nil {
		log.Fatalf("❌ Failed to start broadcast forwarder: %v", err)
	}

	// Analysis: analyzer -> pipeline -> debounce scheduler
	var analyzer analysis.Analyzer
	switch cfg.AIProvider {
	case "openai":
		analyzer = analysis.NewOpenAIAnalyzer(cfg.OpenAIKey, cfg.OpenAIModel)
	default:
		analyzer = analysis.NewHTTPAnalyzer(cfg.AIServiceURL, cfg.AIServiceAPIKey, cfg.AIRequestTimeout)
	}

	analysisStore := services.NewAnalysisStore(convRepo, msgRepo)
	pipeline := analysis.NewPipeline(analysisStore, analyzer, gateway, cfg.AnalysisMaxAttempts, cfg.AnalysisRetryBase)
	scheduler := analysis.NewScheduler(cfg.AnalysisDebounce, cfg.AnalysisMaxPending, func(conversationID uuid.UUID) error {
		ctx, cancel := context.WithTimeout(context.Background(), pipelineRunTimeout)
		defer cancel()
		return pipeline.Run(ctx, conversationID)
	})

	// Services
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	access := services.NewAccessPolicy(convRepo)
	authService := services.NewAuthService(userRepo, jwtService)
	convService := services.NewConversationService(convRepo, msgRepo, access, gateway)
	msgService := services.NewMessageService(convRepo, msgRepo, access, gateway, scheduler)
	chatService := services.NewChatService(convRepo, msgRepo, leadRepo, gateway, scheduler)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, userRepo)
	convHandler := handlers.NewConversationHandler(convService, msgService)
	chatHandler := handlers.NewChatHandler(chatService)
	directoryHandler := handlers.NewDirectoryHandler(leadRepo, userRepo)
	dashboardHandler := handlers.NewDashboardHandler(dashboardRepo)
	wsHandler := handlers.NewWSHandler(hub, jwtService, access, chatService)

	// Per-IP limiter on the unauthenticated surface. Shares the window across
	// instances when redis is up, degrades to in-process when it is not.
	limiter := ratelimit.New(cfg.RedisAddr, cfg.RateLimitMax, cfg.RateLimitWindow)

	// Maintenance sweeper
	sweeper := maintenance.NewSweeper(convRepo, scheduler, time.Duration(cfg.ArchiveAfterDays)*24*time.Hour)
	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		log.Fatalf("❌ Failed to start sweeper: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName: "Realty CRM API",
	})
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "realty-crm-be",
		})
	})

	api := app.Group("/api")

	// Public chat widget
	chatLimit := limiter.Middleware("chat")
	api.Post("/chat/start", chatLimit, chatHandler.Start)
	api.Get("/chat/:token/messages", chatLimit, chatHandler.Messages)
	api.Post("/chat/:token/messages", chatLimit, chatHandler.SendMessage)

	// Auth
	api.Post("/auth/login", limiter.Middleware("auth"), authHandler.Login)
	api.Get("/auth/me", auth.AuthRequired(jwtService), authHandler.Me)

	// Agent console
	protected := api.Group("", auth.AuthRequired(jwtService))
	protected.Get("/conversations", convHandler.List)
	protected.Get("/conversations/:id", convHandler.Get)
	protected.Post("/conversations/:id/claim", convHandler.Claim)
	protected.Patch("/conversations/:id/read", convHandler.MarkRead)
	protected.Patch("/conversations/:id/status", convHandler.SetStatus)
	protected.Get("/conversations/:id/messages", convHandler.Messages)
	protected.Post("/conversations/:id/messages", convHandler.SendMessage)
	protected.Get("/dashboard/stats", dashboardHandler.Stats)
	protected.Get("/leads", directoryHandler.ListLeads)
	protected.Get("/leads/:id", directoryHandler.GetLead)
	protected.Get("/users", auth.RequireRole(models.RoleAdmin), directoryHandler.ListUsers)

	// Websockets
	app.Use("/ws/chat", wsHandler.PublicAuth)
	app.Get("/ws/chat", websocket.New(wsHandler.HandlePublicSocket))
	app.Use("/ws", wsHandler.AgentAuth)
	app.Get("/ws", websocket.New(wsHandler.HandleAgentSocket))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("❌ Server stopped: %v", err)
		}
	}()
	log.Printf("✅ realty-crm-be running at :%s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	sweeper.Stop()
	scheduler.Stop()
	busCancel()
	if err := app.Shutdown(); err != nil {
		utils.LogError("server shutdown", err, nil)
	}
	hub.Stop()
	if bus != nil {
		_ = bus.Close()
	}
	_ = limiter.Close()
	log.Println("👋 Bye")
}
