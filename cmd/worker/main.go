// The worker runs the background loops of the auction engine: the outbox
// relay publishing committed events to RabbitMQ, and the closer settling
// auctions past their end time.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/artbay/auction-engine/internal/adapters/database"
	rmq "github.com/artbay/auction-engine/internal/adapters/events"
	"github.com/artbay/auction-engine/internal/config"
	"github.com/artbay/auction-engine/internal/domain/settlement"
	pkgdb "github.com/artbay/auction-engine/pkg/database"
	pkgevents "github.com/artbay/auction-engine/pkg/events"
	"github.com/artbay/auction-engine/pkg/lock"
)

const closerBatchSize = 50

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

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

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	itemRepo := database.NewPostgresItemRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository()

	settlementService := settlement.NewService(
		txManager,
		itemRepo,
		bidRepo,
		database.NewPostgresTransactionRepository(pool),
		database.NewPostgresTransferRepository(pool),
		outboxRepo,
		lock.NewKeyed(),
		settlement.Rates{
			Commission:    cfg.CommissionRate,
			ProcessingFee: cfg.ProcessingFeeRate,
			Royalty:       cfg.RoyaltyRate,
		},
		logger,
	)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.RelayBatchSize,
		cfg.RelayInterval,
		cfg.EventsExchange,
		logger,
	)

	closer := settlement.NewCloser(settlementService, itemRepo, cfg.CloserInterval, closerBatchSize, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting outbox relay")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting auction closer")
		return closer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shut down")
}
