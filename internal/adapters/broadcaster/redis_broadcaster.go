package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultSubscriptionBuffer = 16

// RedisBroadcaster implements the broadcaster interface using Redis pub/sub.
// Every subscription owns its own PubSub connection and forwarder goroutine.
type RedisBroadcaster struct {
	client     *redis.Client
	bufferSize int
	active     map[*redis.PubSub]struct{}
	mu         sync.Mutex
	logger     zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	BufferSize  int
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	bufferSize := params.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultSubscriptionBuffer
	}

	return &RedisBroadcaster{
		client:     params.RedisClient,
		bufferSize: bufferSize,
		active:     make(map[*redis.PubSub]struct{}),
		logger:     params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Publish publishes an event to all subscribers of an auction via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	channelName := outbound.Topic(auctionID)

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, channelName, eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Str("channel_name", channelName).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to auction")

	return nil
}

// Subscribe opens a Redis subscription to the auction's channel. The returned
// subscription is closed when ctx is done.
func (r *RedisBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID) (*outbound.Subscription, error) {
	channelName := outbound.Topic(auctionID)

	pubsub := r.client.Subscribe(ctx, channelName)
	// wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		r.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to subscribe to Redis channel")
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channelName, err)
	}

	r.mu.Lock()
	r.active[pubsub] = struct{}{}
	r.mu.Unlock()

	events := make(chan outbound.Event, r.bufferSize)
	done := make(chan struct{})

	sub := outbound.NewSubscription(auctionID, events, func() error {
		close(done)
		r.mu.Lock()
		delete(r.active, pubsub)
		r.mu.Unlock()
		return pubsub.Close()
	})

	go r.forward(ctx, pubsub, sub, events, done)

	r.logger.Debug().Str("auction_id", auctionID.String()).Msg("Subscribed to auction via Redis")
	return sub, nil
}

// forward relays Redis messages to the subscription until it ends
func (r *RedisBroadcaster) forward(ctx context.Context, pubsub *redis.PubSub, sub *outbound.Subscription, events chan<- outbound.Event, done <-chan struct{}) {
	defer close(events)
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("auction_id", sub.AuctionID.String()).Msg("Redis forwarder panic")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("auction_id", sub.AuctionID.String()).Msg("Failed to unmarshal Redis message")
				continue
			}

			select {
			case events <- event:
			default:
				r.logger.Warn().Str("auction_id", sub.AuctionID.String()).Msg("Subscriber channel full, dropping event")
			}

		case <-ctx.Done():
			_ = sub.Close()
			return

		case <-done:
			return
		}
	}
}

// Close closes every open subscription and the Redis client
func (r *RedisBroadcaster) Close() error {
	r.mu.Lock()
	for pubsub := range r.active {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Msg("Error closing Redis pubsub")
		}
		delete(r.active, pubsub)
	}
	r.mu.Unlock()

	return r.client.Close()
}
