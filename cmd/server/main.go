package main

import (
	"context"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	webAdapter "garage-api/internal/adapters/web"
	"garage-api/internal/app"
	"garage-api/internal/config"
	"garage-api/internal/core"
	"garage-api/internal/db"
	"garage-api/internal/payment"
	"garage-api/internal/sessions"
	"garage-api/internal/sms"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	cfg.SetupLogging()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	// Payment session tracking degrades to nothing if Redis is unreachable;
	// the payment flow itself never depends on it.
	var sessionStore core.SessionStore
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, payment session tracking disabled")
	} else {
		sessionStore = sessions.NewStore(redisClient)
	}

	gateway := payment.NewPaystack(cfg.PaystackSecretKey)
	notifier := sms.NewNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)

	numbers := core.NewNumberService(pool)
	inventory := core.NewInventoryService(pool)
	invoices := core.NewInvoiceService(pool, numbers, inventory, gateway, notifier, sessionStore, cfg.AppURL)
	customers := core.NewCustomerService(pool, numbers, notifier)
	users := core.NewUserService(pool)
	audit := core.NewAuditService(pool)

	svc := app.NewAppService(pool, invoices, inventory, customers, users, audit)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, gateway, allowedOrigins, cfg.JWTSecret)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
