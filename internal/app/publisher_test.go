package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-ledger-service/internal/adapters/memory"
	"auction-ledger-service/internal/ports/outbound"
	"auction-ledger-service/internal/ports/outbound/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAsyncPublisher_DeliversThroughWrappedBroadcaster(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewBroadcaster(memory.BroadcasterParams{Logger: zerolog.Nop()})
	publisher := NewAsyncPublisher(AsyncPublisherParams{
		Broadcaster: inner,
		Workers:     2,
		QueueSize:   8,
		Logger:      zerolog.Nop(),
	})
	defer publisher.Stop()

	auctionID := uuid.New()
	sub, err := publisher.Subscribe(ctx, auctionID)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, publisher.Publish(ctx, auctionID, outbound.Event{Type: outbound.EventTypeBidPlaced, AuctionID: auctionID}))

	select {
	case event := <-sub.Events():
		require.Equal(t, outbound.EventTypeBidPlaced, event.Type)
		require.NotZero(t, event.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("expected event to be delivered")
	}
}

func TestAsyncPublisher_TransportErrorsAreNotReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inner := mocks.NewMockBroadcaster(ctrl)
	auctionID := uuid.New()
	delivered := make(chan struct{})
	inner.EXPECT().
		Publish(gomock.Any(), auctionID, gomock.Any()).
		DoAndReturn(func(context.Context, uuid.UUID, outbound.Event) error {
			close(delivered)
			return errors.New("redis down")
		})

	publisher := NewAsyncPublisher(AsyncPublisherParams{
		Broadcaster: inner,
		Workers:     1,
		QueueSize:   1,
		Logger:      zerolog.Nop(),
	})

	err := publisher.Publish(context.Background(), auctionID, outbound.Event{Type: outbound.EventTypeAuctionEnded, AuctionID: auctionID})
	require.NoError(t, err)

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected publish attempt")
	}
	publisher.Stop()
}
