package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chachabrian/shupool-backend/internal/config"
	"github.com/chachabrian/shupool-backend/internal/database"
	"github.com/chachabrian/shupool-backend/internal/handlers"
	"github.com/chachabrian/shupool-backend/internal/repository"
	"github.com/chachabrian/shupool-backend/internal/services"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.HealthCheck{}

	var store *repository.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Println("Using in-memory store, data is lost on restart")
		store = repository.NewMemoryStore()
	case "postgres":
		db, err := database.InitDB(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get database instance: %v", err)
		}
		defer sqlDB.Close()
		checks["database"] = sqlDB.PingContext
		store = repository.NewGormStore(db)
	default:
		log.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var (
		idem      services.IdempotencyStore = services.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
		publisher services.MultiPublisher
	)

	// Redis is optional: without it idempotency keys are only honoured per process.
	if cfg.RedisURL != "" {
		rdb, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		idem = services.NewRedisIdempotencyStore(rdb, cfg.IdempotencyTTL)
		publisher = append(publisher, services.NewRedisPublisher(rdb))
	}

	if cfg.AMQPURL != "" {
		amqpPub, err := services.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ: %v", err)
		}
		defer amqpPub.Close()
		publisher = append(publisher, amqpPub)
	}

	storage, err := services.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	inventory := services.NewInventoryController(store.Rides, cfg.InventoryMaxAttempts, cfg.RetryBackoff)
	bookings := services.NewBookingService(store, inventory, idem, publisher, services.BookingOptions{
		CompensationAttempts: cfg.CompensationAttempts,
		Backoff:              cfg.RetryBackoff,
	})
	rides := services.NewRideService(store, inventory, bookings, publisher)
	users := services.NewUserService(store.Users, storage, cfg.JWTSecret, cfg.TokenTTL)

	router := handlers.NewRouter(handlers.RouterDeps{
		Rides:     rides,
		Bookings:  bookings,
		Users:     users,
		JWTSecret: cfg.JWTSecret,
		UploadDir: storage.UploadDir(),
		Checks:    checks,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
