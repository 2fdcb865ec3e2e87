// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"identity-core/cmd"
	"identity-core/internal/data/repository"
	"identity-core/internal/usecase"
	"identity-core/internal/wire"
	"identity-core/pkg/database"
	"identity-core/pkg/notify"
	"identity-core/pkg/ratelimit"
	"identity-core/pkg/security"
	"identity-core/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config; a missing signing secret stops the process here
	config, err := utils.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("store", config.App.StoreDriver),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var repos *repository.Repository
	if config.App.StoreDriver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		repos = repository.NewMemoryRepository(logger)
	} else {
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database connected successfully")

		repos = repository.NewRepository(db, logger)
	}

	// Rate limiter
	counter := ratelimit.Counter(ratelimit.NewMemoryCounter())
	redisClient, err := database.InitRedis(config.Redis)
	switch {
	case err != nil:
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	case redisClient != nil:
		defer redisClient.Close()
		counter = ratelimit.NewRedisCounter(redisClient)
		logger.Info("Redis connected successfully")
	default:
		logger.Warn("REDIS_ADDR not set, rate limits are per process")
	}

	// Notifications
	var notifier notify.Notifier
	if config.Email.Enabled() {
		notifier, err = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:          config.Email.Host,
			Port:          config.Email.Port,
			Username:      config.Email.User,
			Password:      config.Email.Password,
			From:          config.Email.From,
			AdminEmail:    config.Email.AdminNotify,
			AppName:       config.App.Name,
			OTPExpiryMins: config.OTP.ExpiryMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to init mailer", zap.Error(err))
		}
	} else {
		logger.Warn("SMTP not configured, notifications are only logged")
		notifier = notify.NewLogNotifier(logger, config.App.Debug)
	}

	tokens, err := security.NewTokenIssuer([]byte(config.JWT.Secret), config.JWT.TTL(), config.JWT.Issuer)
	if err != nil {
		logger.Fatal("Failed to init token issuer", zap.Error(err))
	}

	// Wire all dependencies
	app := wire.Wiring(usecase.Deps{
		Repo:     repos,
		Config:   config,
		Hasher:   security.NewPasswordHasher(config.Password.BcryptCost),
		Tokens:   tokens,
		TOTP:     security.NewTOTP(config.TOTP.Issuer),
		Notifier: notifier,
		Limiter:  ratelimit.New(counter, config.App.Name),
		Log:      logger,
	})

	// Start server
	if err := cmd.APIServer(ctx, app, config.App.Port, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
	logger.Info("Server stopped")
}
