package memory

import (
	"context"
	"sync"
	"time"

	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultSubscriptionBuffer = 16

// Broadcaster is an in-process pub/sub keyed by auction id. A slow
// subscriber loses events rather than blocking publishers.
type Broadcaster struct {
	mu         sync.RWMutex
	topics     map[uuid.UUID]map[uint64]chan outbound.Event
	nextID     uint64
	bufferSize int
	logger     zerolog.Logger
}

type BroadcasterParams struct {
	BufferSize int
	Logger     zerolog.Logger
}

// NewBroadcaster creates a new in-process broadcaster
func NewBroadcaster(params BroadcasterParams) *Broadcaster {
	bufferSize := params.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultSubscriptionBuffer
	}

	return &Broadcaster{
		topics:     make(map[uuid.UUID]map[uint64]chan outbound.Event),
		bufferSize: bufferSize,
		logger:     params.Logger.With().Str("component", "memory_broadcaster").Logger(),
	}
}

// Publish delivers the event to every current subscriber of the auction
func (b *Broadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.topics[auctionID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn().
				Str("auction_id", auctionID.String()).
				Uint64("subscription_id", id).
				Msg("Subscriber channel full, dropping event")
		}
	}

	return nil
}

// Subscribe registers a new subscription that lives until ctx is done or it is closed
func (b *Broadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID) (*outbound.Subscription, error) {
	ch := make(chan outbound.Event, b.bufferSize)
	done := make(chan struct{})

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.topics[auctionID] == nil {
		b.topics[auctionID] = make(map[uint64]chan outbound.Event)
	}
	b.topics[auctionID][id] = ch
	b.mu.Unlock()

	sub := outbound.NewSubscription(auctionID, ch, func() error {
		b.mu.Lock()
		delete(b.topics[auctionID], id)
		if len(b.topics[auctionID]) == 0 {
			delete(b.topics, auctionID)
		}
		close(ch)
		b.mu.Unlock()
		close(done)
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-done:
		}
	}()

	b.logger.Debug().Str("auction_id", auctionID.String()).Uint64("subscription_id", id).Msg("Subscribed")
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions for an auction
func (b *Broadcaster) SubscriberCount(auctionID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[auctionID])
}
