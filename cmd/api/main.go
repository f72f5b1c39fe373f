package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"taxbridge/internal/config"
	"taxbridge/internal/db"
	"taxbridge/internal/handlers"
	"taxbridge/internal/middleware"
	"taxbridge/internal/models"
	"taxbridge/internal/realtime"
	"taxbridge/internal/services/mailer"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.CAProfile{},
		&models.ServiceCategory{},
		&models.ServiceRequest{},
		&models.Bid{},
		&models.Message{},
		&models.ActivityLog{},
		&models.PayoutEntry{},
		&models.Review{},
	); err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis unreachable:", err)
	}

	hub := realtime.NewHub()

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	})

	authH := &handlers.AuthHandler{DB: gdb, JWTSecret: cfg.JWTSecret, Expires: cfg.JWTExpiresMin}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	catalogH := handlers.NewCatalogHandler(gdb)
	requestH := handlers.NewRequestHandler(gdb, hub, rdb, mail)
	bidH := handlers.NewBidHandler(gdb, hub, rdb, mail)
	chatH := handlers.NewChatHandler(gdb, hub, rdb, cfg.JWTSecret, cfg.UploadDir, cfg.PublicBase)
	adminH := handlers.NewAdminHandler(gdb, hub, rdb, mail)
	onboardH := handlers.NewCAOnboardingHandler(gdb, hub)
	dashH := handlers.NewCADashboardHandler(gdb)
	reviewH := handlers.NewReviewHandler(gdb)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/categories", catalogH.List)
	api.Get("/ca/:id/profile", onboardH.PublicProfile)

	// protected
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", authH.Me)

	// requests: create and read
	protected.Post("/requests", middleware.RequireRoles("client"), requestH.Create)
	protected.Get("/requests", requestH.ListMine)
	protected.Get("/requests/open", middleware.RequireRoles("ca"), requestH.ListOpen)
	protected.Get("/requests/:id", requestH.Get)

	// workflow steps owned by the parties
	protected.Post("/requests/:id/complete", middleware.RequireRoles("ca"), requestH.MarkComplete)
	protected.Post("/requests/:id/approve-work", middleware.RequireRoles("client"), requestH.ApproveWork)
	protected.Post("/requests/:id/reject-work", middleware.RequireRoles("client"), requestH.RejectWork)

	// bids
	protected.Post("/requests/:id/bids", middleware.RequireRoles("ca"), bidH.Submit)
	protected.Get("/requests/:id/bids", bidH.List)
	protected.Post("/bids/:id/hire", middleware.RequireRoles("client"), bidH.Hire)

	// reviews
	protected.Post("/requests/:id/review", middleware.RequireRoles("client"), reviewH.Create)
	protected.Get("/requests/:id/review", reviewH.Get)

	// chat
	protected.Get("/requests/:id/messages", chatH.GetMessages)
	protected.Post("/requests/:id/messages", chatH.Send)
	protected.Post("/requests/:id/forward", middleware.RequireRoles("admin"), chatH.Forward)
	protected.Post("/chat/attachments", chatH.UploadAttachment)

	// ca surface
	caGroup := protected.Group("/", middleware.RequireRoles("ca"))
	onboardH.Routes(caGroup)
	dashH.Routes(caGroup)

	// admin surface
	admin := protected.Group("/admin", middleware.RequireRoles("admin"))
	admin.Get("/requests", adminH.ListPending)
	admin.Post("/requests/:id/approve", adminH.Approve)
	admin.Post("/requests/:id/reject", adminH.Reject)
	admin.Post("/requests/:id/unlock", adminH.Unlock)
	admin.Post("/requests/:id/archive", adminH.Archive)
	admin.Post("/requests/:id/cancel", adminH.ForceCancel)
	admin.Post("/users/:id/verify", adminH.VerifyCA)
	admin.Get("/users", adminH.ListUsers)
	admin.Get("/activity", adminH.ActivityFeed)
	admin.Post("/categories", catalogH.Create)
	admin.Patch("/categories/:id", catalogH.Update)

	// websocket, authenticated via token query param
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
