package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/api"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/auth"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/checkout"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/config"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/database/migrations"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/guests"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/kafka"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/permission"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/webhook"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	if cfg.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting gala ticketing service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		if version, dirty, err := runner.Version(); err == nil {
			log.Info("DATABASE", fmt.Sprintf("Schema at version %d (dirty=%t)", version, dirty))
		}
	}

	redisClient := connectRedis(cfg.Redis, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrdersCompleted, cfg.Kafka.Topics.GuestsChanged}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrdersCompleted, cfg.Kafka.Topics.GuestsChanged)
		defer producer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, order and guest events will not be published")
	}

	checkout.InitStripe(cfg.Stripe.SecretKey)

	db := &store.DB{Bun: bunDB}
	adminSource := auth.NewCachedAdminSource(redisClient, &permission.StoreAdminSource{DB: db}, log)
	resolver := permission.NewResolver(db, adminSource)

	var orderEvents checkout.EventPublisher
	var guestEvents guests.ChangePublisher
	if producer != nil {
		orderEvents = producer
		guestEvents = producer
	}

	checkoutSvc := checkout.NewService(db, checkout.StripeIntents{}, orderEvents,
		checkout.NewRedisTableLock(redisClient), log, cfg.Stripe.Currency)
	guestSvc := guests.NewService(db, resolver, guestEvents, log)
	webhookSvc := webhook.NewService(db, checkoutSvc, log, cfg.Stripe.WebhookSecret)

	handler := api.NewHandler(db, checkoutSvc, guestSvc, webhookSvc, resolver, log)
	router := api.NewRouter(handler, auth.Middleware(cfg.Auth.OIDCIssuer))

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Gala ticketing service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Gala ticketing service shutdown complete")
	}
}
