package app

import (
	"context"
	"time"

	"auction-ledger-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultPublishTimeout = 2 * time.Second

// AsyncPublisher decorates a Broadcaster so that Publish never waits on the
// transport. Events are handed to a bounded worker pool and dropped with a
// warning when the queue is full.
type AsyncPublisher struct {
	next    outbound.Broadcaster
	pool    *pond.WorkerPool
	timeout time.Duration
	logger  zerolog.Logger
}

type AsyncPublisherParams struct {
	Broadcaster outbound.Broadcaster
	Workers     int
	QueueSize   int
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// NewAsyncPublisher creates a new async publisher
func NewAsyncPublisher(params AsyncPublisherParams) *AsyncPublisher {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	return &AsyncPublisher{
		next: params.Broadcaster,
		pool: pond.New(
			params.Workers,
			params.QueueSize,
			pond.Strategy(pond.Balanced()),
		),
		timeout: timeout,
		logger:  params.Logger.With().Str("component", "async_publisher").Logger(),
	}
}

// Publish queues the event for delivery and returns immediately
func (p *AsyncPublisher) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	submitted := p.pool.TrySubmit(func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.next.Publish(publishCtx, auctionID, event); err != nil {
			p.logger.Error().
				Err(err).
				Str("auction_id", auctionID.String()).
				Str("event_type", string(event.Type)).
				Msg("Failed to deliver event")
		}
	})
	if !submitted {
		p.logger.Warn().
			Str("auction_id", auctionID.String()).
			Str("event_type", string(event.Type)).
			Int("waiting_tasks", int(p.pool.WaitingTasks())).
			Msg("Publish queue full, dropping event")
	}

	return nil
}

// Subscribe is passed straight through to the wrapped broadcaster
func (p *AsyncPublisher) Subscribe(ctx context.Context, auctionID uuid.UUID) (*outbound.Subscription, error) {
	return p.next.Subscribe(ctx, auctionID)
}

// Stop waits for queued events to be delivered
func (p *AsyncPublisher) Stop() {
	p.pool.StopAndWait()
}
