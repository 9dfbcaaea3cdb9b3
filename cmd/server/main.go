package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/traincore/lms-platform/internal/config"
	"github.com/traincore/lms-platform/internal/database"
	"github.com/traincore/lms-platform/internal/handler"
	"github.com/traincore/lms-platform/internal/mailer"
	"github.com/traincore/lms-platform/internal/middleware"
	"github.com/traincore/lms-platform/internal/queue"
	"github.com/traincore/lms-platform/internal/repository"
	"github.com/traincore/lms-platform/internal/router"
	"github.com/traincore/lms-platform/internal/service"
)

func main() {
	// Local development keeps its variables in .env; production sets
	// them in the process environment, so a missing file is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := &repository.UserRepo{DB: db}
	tokens := &repository.RefreshTokenRepo{DB: db}
	groups := &repository.GroupMemberRepo{DB: db}

	// Outbound mail goes through the broker; the consumer below drains
	// the queue and talks SMTP.
	mail := queue.NewPublisher()
	smtp := mailer.NewMailer(&logger)
	go func() {
		if err := queue.StartMailConsumer(smtp, &logger); err != nil {
			logger.Error().Err(err).Msg("mail consumer stopped")
		}
	}()

	auth := service.NewAuthService(cfg, users, tokens, groups)
	reset := service.NewPasswordResetService(cfg, users, mail)
	email := service.NewEmailChangeService(cfg, users, mail)
	oauth := service.NewOAuthService(cfg, users, auth)

	e := echo.New()
	e.HideBanner = true

	// Rate limiting degrades to a no-op when Redis is unreachable.
	var rateLimit echo.MiddlewareFunc
	if rdb := config.NewRedisClient(); rdb != nil {
		rateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, auth, reset, email, oauth), cfg.JWTSecret, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
