package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"github.com/PashamDhanushReddy/TalentLink/internal/config"
	"github.com/PashamDhanushReddy/TalentLink/internal/db"
	"github.com/PashamDhanushReddy/TalentLink/internal/handlers"
	"github.com/PashamDhanushReddy/TalentLink/internal/middleware"
	"github.com/PashamDhanushReddy/TalentLink/internal/models"
	"github.com/PashamDhanushReddy/TalentLink/internal/notify"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := notify.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}
	notifier := notify.NewPublisher(rdb)

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Contract{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		log.Fatal(err)
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	authH := &handlers.AuthHandler{
		DB:                gdb,
		JWTSecret:         cfg.JWTSecret,
		AccessExpiresMin:  cfg.AccessExpiresMin,
		RefreshExpiresMin: cfg.RefreshExpiresMin,
	}
	chatH := handlers.NewChatHandler(gdb, notifier)
	contractH := handlers.NewContractHandler(gdb)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/token/refresh", authH.Refresh)

	// protected (JWT bearer)
	protected := api.Group("/",
		middleware.JWTFromBearer(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Post("/contracts",
		middleware.RequireRoles("client"),
		contractH.Create,
	)
	protected.Get("/contracts", contractH.ListMine)

	chat := protected.Group("/chat")

	sendLimiter := middleware.NewLimiterStore(60, 10, 5*time.Minute)

	chat.Get("/conversations", chatH.GetConversations)
	chat.Post("/conversations", chatH.CreateOrGetConversation)
	chat.Get("/conversations/:id/messages", chatH.GetMessages)
	chat.Post("/conversations/:id/send_message",
		middleware.RateLimit(sendLimiter),
		chatH.SendMessage,
	)
	chat.Post("/conversations/:id/mark_as_read", chatH.MarkAsRead)
	chat.Post("/conversations/:id/clear_chat", chatH.ClearChat)
	chat.Get("/unread_total", chatH.GetUnreadTotal)

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
