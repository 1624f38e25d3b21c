package outbound

//go:generate mockgen -source=broadcaster.go -destination=mocks/broadcaster_mock.go -package=mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeAuctionCreated   EventType = "auction.created"
	EventTypeAuctionUpdated   EventType = "auction.updated"
	EventTypeBidPlaced        EventType = "bid.placed"
	EventTypeAuctionEnded     EventType = "auction.ended"
	EventTypeAuctionCancelled EventType = "auction.cancelled"
)

// Event represents a broadcast event
type Event struct {
	Type      EventType              `json:"type"`
	AuctionID uuid.UUID              `json:"auction_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Topic returns the channel name events for an auction are published on
func Topic(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s", auctionID.String())
}

// Broadcaster defines the interface for broadcasting events
type Broadcaster interface {
	// Publish publishes an event to all subscribers of an auction
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error

	// Subscribe opens a subscription to one auction's topic. The subscription
	// ends when ctx is done or Close is called, whichever happens first.
	Subscribe(ctx context.Context, auctionID uuid.UUID) (*Subscription, error)
}

// Subscription is a live feed of one auction's events. The events channel is
// closed once the subscription ends.
type Subscription struct {
	AuctionID uuid.UUID

	events  <-chan Event
	closeFn func() error
	once    sync.Once
	err     error
}

// NewSubscription wraps an adapter's event channel. closeFn must release the
// adapter resources and eventually close events.
func NewSubscription(auctionID uuid.UUID, events <-chan Event, closeFn func() error) *Subscription {
	return &Subscription{
		AuctionID: auctionID,
		events:    events,
		closeFn:   closeFn,
	}
}

// Events returns the channel events are delivered on
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.err = s.closeFn()
		}
	})
	return s.err
}
