package auction

import (
	"errors"
	"testing"
	"time"

	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestAuction(t *testing.T, now time.Time) *Auction {
	t.Helper()
	listing := shared.Listing{
		Title:       "Vintage camera",
		Description: "A working rangefinder from 1962",
		ImageRef:    "https://example.com/camera.jpg",
	}
	return New(uuid.New(), listing, decimal.NewFromInt(100), now.Add(time.Hour), now)
}

func newBidAt(a *Auction, bidder uuid.UUID, amount int64, at time.Time) bid.Bid {
	return bid.New(a.ID, bidder, decimal.NewFromInt(amount), at)
}

func TestAuction_PlaceBid(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name          string
		setup         func(a *Auction)
		bidder        func(a *Auction) uuid.UUID
		amount        decimal.Decimal
		at            time.Time
		expectedError error
	}{
		{
			name:   "accepted_above_starting_price",
			setup:  func(a *Auction) {},
			bidder: func(a *Auction) uuid.UUID { return uuid.New() },
			amount: decimal.NewFromInt(150),
			at:     now,
		},
		{
			name:          "equal_to_current_price",
			setup:         func(a *Auction) {},
			bidder:        func(a *Auction) uuid.UUID { return uuid.New() },
			amount:        decimal.NewFromInt(100),
			at:            now,
			expectedError: shared.ErrBidTooLow,
		},
		{
			name:          "owner_cannot_bid",
			setup:         func(a *Auction) {},
			bidder:        func(a *Auction) uuid.UUID { return a.OwnerID },
			amount:        decimal.NewFromInt(500),
			at:            now,
			expectedError: shared.ErrSelfBidForbidden,
		},
		{
			name:          "past_end_time",
			setup:         func(a *Auction) {},
			bidder:        func(a *Auction) uuid.UUID { return uuid.New() },
			amount:        decimal.NewFromInt(500),
			at:            now.Add(2 * time.Hour),
			expectedError: shared.ErrAuctionClosed,
		},
		{
			name:          "exactly_at_end_time",
			setup:         func(a *Auction) {},
			bidder:        func(a *Auction) uuid.UUID { return uuid.New() },
			amount:        decimal.NewFromInt(500),
			at:            now.Add(time.Hour),
			expectedError: shared.ErrAuctionClosed,
		},
		{
			name: "closed_check_runs_before_self_bid",
			setup: func(a *Auction) {
				a.Status = StatusEnded
			},
			bidder:        func(a *Auction) uuid.UUID { return a.OwnerID },
			amount:        decimal.NewFromInt(50),
			at:            now,
			expectedError: shared.ErrAuctionClosed,
		},
		{
			name:          "self_bid_check_runs_before_amount",
			setup:         func(a *Auction) {},
			bidder:        func(a *Auction) uuid.UUID { return a.OwnerID },
			amount:        decimal.NewFromInt(1),
			at:            now,
			expectedError: shared.ErrSelfBidForbidden,
		},
		{
			name: "cancelled_auction",
			setup: func(a *Auction) {
				a.Cancel(now)
			},
			bidder:        func(a *Auction) uuid.UUID { return uuid.New() },
			amount:        decimal.NewFromInt(500),
			at:            now,
			expectedError: shared.ErrAuctionClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAuction(t, now)
			tt.setup(a)
			before := a.Clone()

			placed, err := a.PlaceBid(tt.bidder(a), tt.amount, tt.at)

			if tt.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.expectedError))
				require.Equal(t, before, a)
				return
			}

			require.NoError(t, err)
			require.Equal(t, a.ID, placed.AuctionID)
			require.True(t, tt.amount.Equal(placed.Amount))
			require.True(t, tt.amount.Equal(a.CurrentPrice))
			require.Len(t, a.Bids, 1)
			require.Equal(t, placed, a.Bids[0])
		})
	}
}

func TestAuction_PlaceBid_TooLowCarriesCurrentPrice(t *testing.T) {
	now := time.Now().UTC()
	a := newTestAuction(t, now)

	_, err := a.PlaceBid(uuid.New(), decimal.NewFromInt(150), now)
	require.NoError(t, err)

	_, err = a.PlaceBid(uuid.New(), decimal.NewFromInt(120), now)
	var tooLow *shared.BidTooLowError
	require.True(t, errors.As(err, &tooLow))
	require.True(t, decimal.NewFromInt(150).Equal(tooLow.CurrentPrice))
	require.Equal(t, "bid must be higher than current price of 150", err.Error())
}

func TestAuction_PlaceBid_TooLowKeepsFullPrecision(t *testing.T) {
	now := time.Now().UTC()
	a := newTestAuction(t, now)

	_, err := a.PlaceBid(uuid.New(), decimal.NewFromInt(150), now)
	require.NoError(t, err)
	_, err = a.PlaceBid(uuid.New(), decimal.RequireFromString("200.004"), now)
	require.NoError(t, err)

	_, err = a.PlaceBid(uuid.New(), decimal.RequireFromString("200.001"), now)
	require.ErrorIs(t, err, shared.ErrBidTooLow)
	require.Equal(t, "bid must be higher than current price of 200.004", err.Error())

	// the quoted price itself is not enough, anything above it is
	_, err = a.PlaceBid(uuid.New(), decimal.RequireFromString("200.004"), now)
	require.ErrorIs(t, err, shared.ErrBidTooLow)
	_, err = a.PlaceBid(uuid.New(), decimal.RequireFromString("200.005"), now)
	require.NoError(t, err)
}

func TestAuction_PriceIsMonotonic(t *testing.T) {
	now := time.Now().UTC()
	a := newTestAuction(t, now)

	amounts := []int64{101, 99, 150, 150, 149, 200, 180, 201}
	for i, amt := range amounts {
		prev := a.CurrentPrice
		_, _ = a.PlaceBid(uuid.New(), decimal.NewFromInt(amt), now.Add(time.Duration(i)*time.Second))
		require.True(t, a.CurrentPrice.GreaterThanOrEqual(prev))
	}

	require.True(t, decimal.NewFromInt(201).Equal(a.CurrentPrice))
	require.Len(t, a.Bids, 4)
	for i := 1; i < len(a.Bids); i++ {
		require.True(t, a.Bids[i].Amount.GreaterThan(a.Bids[i-1].Amount))
	}
	require.True(t, a.HighestBid().Amount.Equal(a.CurrentPrice))
}

func TestAuction_Close(t *testing.T) {
	now := time.Now().UTC()

	t.Run("expiry_after_end_time_picks_winner", func(t *testing.T) {
		a := newTestAuction(t, now)
		winner := uuid.New()
		_, err := a.PlaceBid(uuid.New(), decimal.NewFromInt(120), now)
		require.NoError(t, err)
		_, err = a.PlaceBid(winner, decimal.NewFromInt(130), now.Add(time.Minute))
		require.NoError(t, err)

		changed, err := a.Close(a.EndTime, TriggerExpiry)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, StatusEnded, a.Status)
		require.NotNil(t, a.WinnerID)
		require.Equal(t, winner, *a.WinnerID)
	})

	t.Run("expiry_before_end_time_is_rejected", func(t *testing.T) {
		a := newTestAuction(t, now)
		changed, err := a.Close(now, TriggerExpiry)
		require.ErrorIs(t, err, shared.ErrAuctionNotExpired)
		require.False(t, changed)
		require.Equal(t, StatusActive, a.Status)
	})

	t.Run("manual_close_before_end_time", func(t *testing.T) {
		a := newTestAuction(t, now)
		changed, err := a.Close(now, TriggerManualAdmin)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, StatusEnded, a.Status)
		require.Nil(t, a.WinnerID)
	})

	t.Run("second_close_is_a_no_op", func(t *testing.T) {
		a := newTestAuction(t, now)
		bidder := uuid.New()
		_, err := a.PlaceBid(bidder, decimal.NewFromInt(120), now)
		require.NoError(t, err)

		changed, err := a.Close(now, TriggerManualAdmin)
		require.NoError(t, err)
		require.True(t, changed)
		snapshot := a.Clone()

		changed, err = a.Close(now.Add(2*time.Hour), TriggerExpiry)
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, snapshot, a)
	})

	t.Run("unknown_trigger", func(t *testing.T) {
		a := newTestAuction(t, now)
		_, err := a.Close(now, CloseTrigger("bogus"))
		require.ErrorIs(t, err, shared.ErrInvalidCloseTrigger)
	})
}

func TestAuction_WinnerTieBreak(t *testing.T) {
	now := time.Now().UTC()
	a := newTestAuction(t, now)
	early := uuid.New()
	late := uuid.New()

	// Only strictly higher bids are accepted, so build the tie directly.
	a.Bids = append(a.Bids,
		newBidAt(a, late, 300, now.Add(2*time.Second)),
		newBidAt(a, early, 300, now.Add(time.Second)),
	)

	require.Equal(t, early, *a.HighestBidder())
}

func TestAuction_Cancel(t *testing.T) {
	now := time.Now().UTC()
	a := newTestAuction(t, now)
	_, err := a.PlaceBid(uuid.New(), decimal.NewFromInt(120), now)
	require.NoError(t, err)

	require.True(t, a.Cancel(now))
	require.Equal(t, StatusCancelled, a.Status)
	require.Nil(t, a.WinnerID)
	require.False(t, a.Cancel(now))

	changed, err := a.Close(now, TriggerManualAdmin)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, StatusCancelled, a.Status)
}

func TestAuction_Projections(t *testing.T) {
	now := time.Now().UTC()
	a := newTestAuction(t, now)

	require.True(t, a.IsActive(now))
	require.Equal(t, time.Hour, a.TimeRemaining(now))
	require.Equal(t, time.Duration(0), a.TimeRemaining(now.Add(3*time.Hour)))
	require.False(t, a.IsActive(now.Add(3*time.Hour)))
	require.Nil(t, a.HighestBid())
	require.Nil(t, a.HighestBidder())

	_, err := a.Close(now, TriggerManualAdmin)
	require.NoError(t, err)
	require.False(t, a.IsActive(now))
	require.Equal(t, time.Duration(0), a.TimeRemaining(now))
	require.True(t, a.IsEnded())
}

func TestAuction_CloneIsIndependent(t *testing.T) {
	now := time.Now().UTC()
	a := newTestAuction(t, now)
	_, err := a.PlaceBid(uuid.New(), decimal.NewFromInt(120), now)
	require.NoError(t, err)

	c := a.Clone()
	_, err = c.PlaceBid(uuid.New(), decimal.NewFromInt(130), now)
	require.NoError(t, err)

	require.Len(t, a.Bids, 1)
	require.Len(t, c.Bids, 2)
	require.True(t, decimal.NewFromInt(120).Equal(a.CurrentPrice))
}

func TestAuction_UpdateListing(t *testing.T) {
	now := time.Now().UTC()
	edited := shared.Listing{
		Title:       "Rangefinder camera",
		Description: "A working rangefinder from 1962, freshly serviced",
		ImageRef:    "https://example.com/camera-2.jpg",
	}

	tests := []struct {
		name          string
		setup         func(a *Auction)
		editor        func(a *Auction) uuid.UUID
		listing       *shared.Listing
		at            time.Time
		expectedError error
	}{
		{
			name:   "owner_edits_active_auction",
			editor: func(a *Auction) uuid.UUID { return a.OwnerID },
			at:     now.Add(time.Minute),
		},
		{
			name:          "non_owner_is_rejected",
			editor:        func(a *Auction) uuid.UUID { return uuid.New() },
			at:            now.Add(time.Minute),
			expectedError: shared.ErrNotAuctionOwner,
		},
		{
			name:          "edit_after_end_time_is_rejected",
			editor:        func(a *Auction) uuid.UUID { return a.OwnerID },
			at:            now.Add(2 * time.Hour),
			expectedError: shared.ErrAuctionClosed,
		},
		{
			name:          "invalid_listing_is_rejected",
			editor:        func(a *Auction) uuid.UUID { return a.OwnerID },
			listing:       &shared.Listing{Title: "ab", Description: edited.Description, ImageRef: edited.ImageRef},
			at:            now.Add(time.Minute),
			expectedError: shared.ErrInvalidTitle,
		},
		{
			name:          "edit_after_close_is_rejected",
			setup:         func(a *Auction) { _, _ = a.Close(now, TriggerManualAdmin) },
			editor:        func(a *Auction) uuid.UUID { return a.OwnerID },
			at:            now.Add(time.Minute),
			expectedError: shared.ErrAuctionClosed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newTestAuction(t, now)
			if tt.setup != nil {
				tt.setup(a)
			}
			original := a.Listing
			listing := edited
			if tt.listing != nil {
				listing = *tt.listing
			}

			err := a.UpdateListing(tt.editor(a), listing, tt.at)
			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				require.Equal(t, original, a.Listing)
				return
			}

			require.NoError(t, err)
			require.Equal(t, edited, a.Listing)
			require.Equal(t, tt.at, a.UpdatedAt)
		})
	}
}
