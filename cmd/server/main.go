package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servicehub/internal/config"
	"servicehub/internal/domain"
	"servicehub/internal/httpserver"
	"servicehub/internal/llm"
	"servicehub/internal/notify"
	"servicehub/internal/realtime"
	"servicehub/internal/security"
	"servicehub/internal/service"
	"servicehub/internal/storage"
	"servicehub/internal/store/postgres"
	"servicehub/internal/store/sqlite"
	"servicehub/internal/ws"
)

// @title           ServiceHub API
// @version         1.0
// @description     Backend API for the local services marketplace.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize database
	repos, closeDB, err := openRepositories(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(0)

	var encryptor *security.Encryptor
	if cfg.EncryptKey != "" {
		encryptor, err = security.NewEncryptor(cfg.EncryptKey, cfg.LegacyEncryptKeys)
		if err != nil {
			log.Fatalf("failed to initialize encryptor: %v", err)
		}
	} else {
		log.Println("ENCRYPTION_KEY not set, messages are stored in plaintext")
	}

	store, uploads, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	// Change feed and its optional AMQP relay
	broker := realtime.NewBroker(0)
	var relay *realtime.AMQPRelay
	if cfg.AMQPURL != "" {
		relay, err = realtime.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("amqp relay disabled: %v", err)
		} else if err := relay.Start(broker); err != nil {
			log.Printf("amqp relay disabled: %v", err)
			relay.Close()
			relay = nil
		}
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	var asynqNotifier *notify.AsynqNotifier
	if cfg.RedisAddr != "" {
		asynqNotifier = notify.NewAsynqNotifier(cfg.RedisAddr)
		notifier = asynqNotifier
	}

	// Services
	convSvc := service.NewConversationService(repos.Conversations, repos.Messages, repos.Profiles, encryptor, broker)
	deps := httpserver.Deps{
		Config:        cfg,
		Tokens:        tokenSvc,
		Profiles:      repos.Profiles,
		Auth:          service.NewAuthService(repos.Profiles, tokenSvc, passwordHasher, broker),
		ProfileSvc:    service.NewProfileService(repos.Profiles, store, broker),
		Listings:      service.NewListingService(repos.Listings, repos.Profiles, store, broker),
		Bookings:      service.NewBookingService(repos.Bookings, repos.Listings, repos.Profiles, convSvc, notifier, broker),
		Conversations: convSvc,
		Reviews:       service.NewReviewService(repos.Reviews, repos.Bookings, repos.Listings, broker),
		Analytics:     service.NewAnalyticsService(repos),
		Chat: llm.NewClient(llm.Config{
			URL:         cfg.LLMAPIURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
		}),
		Uploads: uploads,
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	deps.WS = ws.MakeHandler(hub, tokenSvc, repos.Profiles, broker, convSvc, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      httpserver.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Starting %s on %s\n", cfg.AppName, cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	hub.CloseAll()
	broker.Close()
	if relay != nil {
		relay.Close()
	}
	if asynqNotifier != nil {
		if err := asynqNotifier.Close(); err != nil {
			log.Printf("closing asynq client: %v", err)
		}
	}
	closeDB()
}

// openRepositories opens the configured database, migrates it and returns
// its repositories with a close function.
func openRepositories(cfg *config.Config) (domain.Repositories, func(), error) {
	if cfg.DBDriver == "postgres" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return domain.Repositories{}, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return domain.Repositories{}, nil, err
		}
		return postgres.NewRepositories(pool), pool.Close, nil
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return domain.Repositories{}, nil, err
	}
	if err := sqlite.Migrate(db); err != nil {
		db.Close()
		return domain.Repositories{}, nil, err
	}
	return sqlite.NewRepositories(db), func() { db.Close() }, nil
}

// openStorage returns the object store and, for local storage, the handler
// serving its files.
func openStorage(cfg *config.Config) (storage.ObjectStore, http.Handler, error) {
	if cfg.StorageDriver == "cloudinary" {
		s, err := storage.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	s, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Handler(), nil
}
