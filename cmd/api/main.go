package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/artbay/auction-engine/internal/adapters/api"
	"github.com/artbay/auction-engine/internal/adapters/cache"
	"github.com/artbay/auction-engine/internal/adapters/database"
	rmq "github.com/artbay/auction-engine/internal/adapters/events"
	"github.com/artbay/auction-engine/internal/config"
	"github.com/artbay/auction-engine/internal/domain/auction"
	"github.com/artbay/auction-engine/internal/domain/settlement"
	"github.com/artbay/auction-engine/internal/metrics"
	pkgdb "github.com/artbay/auction-engine/pkg/database"
	pkgevents "github.com/artbay/auction-engine/pkg/events"
	"github.com/artbay/auction-engine/pkg/lock"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Unable to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("Postgres connected")

	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ connected")

	publisher, err := rmq.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// Repositories
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	itemRepo := database.NewPostgresItemRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	bidderProvider := database.NewPostgresBidderProvider(pool)
	outboxRepo := database.NewPostgresOutboxRepository()

	// Only the display GET reads through Redis. Bid validation, settlement
	// and the closer read Postgres, so snapshot staleness never affects an
	// accept or close decision.
	var itemReader api.ItemReader = itemRepo
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, serving item reads from Postgres", "error", err)
		} else {
			logger.Info("Redis connected")
			itemReader = cache.NewItemSnapshotCache(itemRepo, rdb, 5*time.Second)
		}
	}

	// Services share one keyed lock so bids and closes on the same item
	// serialize in-process before hitting the row lock.
	locks := lock.NewKeyed()

	biddingService := auction.NewService(
		txManager,
		itemRepo,
		bidRepo,
		bidderProvider,
		outboxRepo,
		locks,
		auction.Config{
			MinBidIncrement: cfg.MinBidIncrement,
			ExtensionWindow: cfg.ExtensionWindow,
			MaxCascadeDepth: cfg.MaxCascadeDepth,
		},
		logger,
	)

	settlementService := settlement.NewService(
		txManager,
		itemRepo,
		bidRepo,
		database.NewPostgresTransactionRepository(pool),
		database.NewPostgresTransferRepository(pool),
		outboxRepo,
		locks,
		settlement.Rates{
			Commission:    cfg.CommissionRate,
			ProcessingFee: cfg.ProcessingFeeRate,
			Royalty:       cfg.RoyaltyRate,
		},
		logger,
	)

	// Outbox relay runs in-process next to the API; the worker binary runs
	// another instance, SKIP LOCKED keeps them from double-publishing.
	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.RelayBatchSize,
		cfg.RelayInterval,
		cfg.EventsExchange,
		logger,
	)
	go func() {
		logger.Info("Starting outbox relay")
		if err := relay.Run(ctx); err != nil {
			logger.Error("Outbox relay stopped", "error", err)
		}
	}()

	handler := api.NewHandler(biddingService, settlementService, itemReader)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())
	handler.Routes(r)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting auction engine API", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
