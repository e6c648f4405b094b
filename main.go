package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"award-draft-system/handlers"
	"award-draft-system/middleware"
	"award-draft-system/models"
	"award-draft-system/services"
	"award-draft-system/utils"
	"award-draft-system/workers"

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

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB, artwork and posters only
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — SSE re-authenticates via query token
	app.Use(func(c *fiber.Ctx) error {
		if strings.HasSuffix(c.Path(), "/events") {
			return c.Next()
		}
		return middleware.GatewayAuthMiddleware()(c)
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Ceremony{},
		&models.CategoryEdition{},
		&models.CeremonyWinner{},
		&models.Nomination{},
		&models.NominationContributor{},
		&models.NominationChangeAudit{},
		&models.Film{},
		&models.Person{},
		&models.Song{},
		&models.Performance{},
		&models.FilmCredit{},
		&models.League{},
		&models.LeagueMember{},
		&models.Season{},
		&models.Draft{},
		&models.DraftSeat{},
		&models.DraftPick{},
		&models.AuditLog{},
		&models.RealtimeEvent{},
		&models.AppConfig{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	auditService := services.NewAuditService(db)
	notifyService := services.NewNotifyService(db)
	configService := services.NewConfigService(db)
	ceremonyService := services.NewCeremonyService(db, auditService, notifyService, configService)
	nominationService := services.NewNominationService(db, auditService)
	winnerService := services.NewWinnerService(db, auditService, notifyService)
	draftService := services.NewDraftService(db, auditService)
	mergeService := services.NewMergeService(db, auditService)
	tmdbClient := services.NewTMDBClient(os.Getenv("TMDB_BASE_URL"), os.Getenv("TMDB_API_TOKEN"))
	catalogService := services.NewCatalogService(db, tmdbClient, auditService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL != "" {
		serviceToken := os.Getenv("DRAFT_SERVICE_TOKEN")
		syncWorker := workers.NewMemberProfileSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", serviceToken)
		go func() {
			log.Println("Starting Member Profile Sync Worker...")
			syncWorker.Start(ctx)
		}()
	} else {
		log.Println("⚠️  PROFILE_SERVICE_URL not set, member profile sync disabled")
	}

	go workers.PollMissingPosters(ctx, db, tmdbClient, 5*time.Minute)

	ceremonyService.StartPublishScheduler()

	handlers.SetupCeremonyRoutes(app, ceremonyService, nominationService, winnerService, notifyService, configService)
	handlers.SetupDraftRoutes(app, draftService)
	handlers.SetupCatalogRoutes(app, catalogService, mergeService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Publish scheduler running (every minute)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
