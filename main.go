package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"training-arena-system/config"
	"training-arena-system/handlers"
	"training-arena-system/middleware"
	"training-arena-system/models"
	"training-arena-system/services"
	"training-arena-system/utils"
	"training-arena-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := config.Load()

	app := fiber.New(fiber.Config{
		AppName: "training-arena-system",
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsList := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.SkillProfile{},
		&models.SessionRecord{},
		&models.ArenaStats{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if cfg.ArchiveEnabled {
		if err := utils.InitArchive(cfg); err != nil {
			log.Fatal("failed to initialize R2 archive client:", err)
		}
	}

	hub := services.NewNotificationHub()
	statsClient := services.NewStatsClient(cfg.StatsServiceURL, cfg.ServiceToken)
	consentClient := services.NewConsentClient(cfg.ConsentServiceURL, cfg.ServiceToken)
	metricsService := services.NewMetricsService(db)
	combatEngine := services.NewCombatEngine(cfg.Combat, nil)
	arenaService := services.NewArenaService(cfg, combatEngine, statsClient, metricsService, hub)
	skillResolver := &services.SkillResolver{Profiles: metricsService, Stats: statsClient}
	queueService := services.NewQueueService(cfg, arenaService, skillResolver, consentClient, hub, metricsService)
	trainingAPI := services.NewTrainingAPI(queueService, arenaService, metricsService)

	services.StartCleanupSweeper(cfg, queueService, arenaService, metricsService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ProfileSyncURL != "" {
		syncWorker := workers.NewProfileSyncWorker(db, cfg.ProfileSyncURL, "/api/v1/internal/skill-profiles", cfg.ServiceToken)
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  PROFILE_SYNC_URL not set — skill profiles stay local")
	}

	handlers.SetupTrainingRoutes(app, trainingAPI, hub)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Training arena running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Session cap: %d, action cooldown: %s, max duration: %s", cfg.MaxActiveSessions, cfg.ActionCooldown, cfg.MaxSessionDuration)
	log.Printf("✅ Consent enforcement: %t", cfg.EnforceConsent)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
