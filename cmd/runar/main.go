package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/config"
	"github.com/noah-isme/runar/internal/database"
	"github.com/noah-isme/runar/internal/handler"
	"github.com/noah-isme/runar/internal/middleware"
	"github.com/noah-isme/runar/internal/repository"
	"github.com/noah-isme/runar/internal/router"
	"github.com/noah-isme/runar/internal/service"
	"github.com/noah-isme/runar/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("user_id", cfg.UserID).Logger()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	settings, closeSettings, err := openSettings(cfg, redisClient)
	if err != nil {
		log.Fatalf("failed to open settings store: %v", err)
	}
	defer closeSettings()

	var natsConn *nats.Conn
	if cfg.TransportDriver == "nats" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-"+cfg.UserID, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	codec, err := transport.NewCodec(cfg.TransportCodec)
	if err != nil {
		log.Fatalf("failed to create codec: %v", err)
	}
	bus, err := transport.New(transport.Options{
		Driver:  cfg.TransportDriver,
		Channel: cfg.TransportChannel,
		Codec:   codec,
		Redis:   redisClient,
		NATS:    natsConn,
	}, transport.Identity{NodeID: uuid.NewString(), UserID: cfg.UserID}, logger)
	if err != nil {
		log.Fatalf("failed to create transport: %v", err)
	}
	defer bus.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	store := service.NewConversationStore(service.StoreOptions{
		UserID:           cfg.UserID,
		Role:             cfg.Role,
		Directory:        service.NewDirectory(cfg.Users),
		Settings:         settings,
		MonitorCapacity:  cfg.MonitorCapacity,
		TypingStaleAfter: cfg.TypingStaleAfter,
		Logger:           logger,
	})
	if err := store.Load(ctx); err != nil {
		log.Fatalf("failed to load conversation state: %v", err)
	}

	views := service.NewViewHub(service.AlertOptions{
		Desktop:     cfg.DesktopNotifications,
		Sound:       cfg.SoundEnabled,
		SoundPath:   cfg.SoundPath,
		SoundVolume: cfg.SoundVolume,
	}, logger)

	relay := service.NewRelay(service.RelayOptions{
		Store:             store,
		Transport:         bus,
		Views:             views,
		Alerts:            views,
		Validator:         validate,
		PinsMode:          cfg.PinsMode,
		TypingThrottle:    cfg.TypingThrottle,
		TypingIdleTimeout: cfg.TypingIdleTimeout,
		Logger:            logger,
	})
	if err := relay.Start(ctx); err != nil {
		log.Fatalf("failed to start relay: %v", err)
	}
	defer relay.Close()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ConversationHandler: handler.NewConversationHandler(relay, validate, logger),
		ModerationHandler:   handler.NewModerationHandler(relay, validate, logger),
		ViewStreamHandler:   handler.NewViewStreamHandler(views, validate, logger),
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret, middleware.Session{
			UserID: cfg.UserID,
			Role:   cfg.Role,
		}),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

// openSettings selects the settings backend. The returned func releases it.
func openSettings(cfg config.Config, redisClient *redis.Client) (repository.SettingsRepository, func(), error) {
	switch cfg.SettingsBackend {
	case "redis":
		return repository.NewRedisSettingsRepository(redisClient, cfg.SettingsNamespace), func() {}, nil
	case "pebble":
		db, err := database.OpenPebble(cfg.PebblePath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPebbleSettingsRepository(db, cfg.SettingsNamespace), func() { _ = db.Close() }, nil
	case "postgres", "sqlite":
		connect := database.ConnectSQLite
		if cfg.SettingsBackend == "postgres" {
			connect = database.ConnectPostgres
		}
		db, err := connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigrateSettings(db); err != nil {
			return nil, nil, fmt.Errorf("migrate settings: %w", err)
		}
		release := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repository.NewSettingsRepository(db, cfg.SettingsNamespace), release, nil
	default:
		return nil, nil, fmt.Errorf("unsupported settings backend %q", cfg.SettingsBackend)
	}
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
