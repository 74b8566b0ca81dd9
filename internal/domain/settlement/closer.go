package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ExpiredItemLister finds auctions that are past their end time and still
// need a close attempt.
type ExpiredItemLister interface {
	ListExpiredOpenItems(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// Closer polls for expired auctions and closes them. Manual close calls
// racing the poller are harmless: Close is idempotent.
type Closer struct {
	service   *Service
	lister    ExpiredItemLister
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewCloser creates a new auction closer.
func NewCloser(service *Service, lister ExpiredItemLister, interval time.Duration, batchSize int, logger *slog.Logger) *Closer {
	return &Closer{
		service:   service,
		lister:    lister,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run starts the polling loop and blocks until ctx is cancelled.
func (c *Closer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	if err := c.closeBatch(ctx); err != nil {
		c.logger.Error("Error closing expired auctions", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.closeBatch(ctx); err != nil {
				c.logger.Error("Error closing expired auctions", "error", err)
			}
		}
	}
}

func (c *Closer) closeBatch(ctx context.Context) error {
	ids, err := c.lister.ListExpiredOpenItems(ctx, time.Now().UTC(), c.batchSize)
	if err != nil {
		return err
	}

	for _, id := range ids {
		// One auction failing to close must not block the rest of the
		// batch; settlement failures come back as a state, not an error.
		result, err := c.service.Close(ctx, CloseCommand{ItemID: id})
		if err != nil {
			c.logger.Error("Failed to close auction", "item_id", id, "error", err)
			continue
		}
		c.logger.Info("Closed expired auction", "item_id", id, "state", result.State)
	}
	return nil
}
