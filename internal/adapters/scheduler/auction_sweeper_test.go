package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-ledger-service/internal/adapters/memory"
	"auction-ledger-service/internal/app"
	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"
	inmocks "auction-ledger-service/internal/ports/inbound/mocks"
	outmocks "auction-ledger-service/internal/ports/outbound/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAuctionSweeper_SweepOnce_ContinuesPastFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outmocks.NewMockAuctionRepository(ctrl)
	ledger := inmocks.NewMockLedgerService(ctrl)
	now := time.Now().UTC()

	ok1, broken, ok2, gone, done := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()

	repo.EXPECT().QueryExpiredActive(gomock.Any(), now, 50).Return([]uuid.UUID{ok1, broken, ok2, gone, done}, nil)
	ledger.EXPECT().Close(gomock.Any(), ok1, now, auction.TriggerExpiry).Return(&shared.AuctionEndResult{AuctionID: ok1, Changed: true}, nil)
	ledger.EXPECT().Close(gomock.Any(), broken, now, auction.TriggerExpiry).Return(nil, shared.ErrPersistenceFailure)
	ledger.EXPECT().Close(gomock.Any(), ok2, now, auction.TriggerExpiry).Return(&shared.AuctionEndResult{AuctionID: ok2, Changed: true}, nil)
	ledger.EXPECT().Close(gomock.Any(), gone, now, auction.TriggerExpiry).Return(nil, shared.ErrAuctionNotFound)
	ledger.EXPECT().Close(gomock.Any(), done, now, auction.TriggerExpiry).Return(&shared.AuctionEndResult{AuctionID: done, Changed: false}, nil)

	sweeper := NewAuctionSweeper(AuctionSweeperParams{
		AuctionRepo: repo,
		Ledger:      ledger,
		BatchSize:   50,
		Workers:     2,
		Logger:      zerolog.Nop(),
	})
	defer sweeper.Stop(context.Background())

	closed, failed := sweeper.SweepOnce(context.Background(), now)
	require.Equal(t, 2, closed)
	require.Equal(t, 1, failed)
}

func TestAuctionSweeper_SweepOnce_QueryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outmocks.NewMockAuctionRepository(ctrl)
	ledger := inmocks.NewMockLedgerService(ctrl)
	now := time.Now().UTC()

	repo.EXPECT().QueryExpiredActive(gomock.Any(), now, defaultSweepBatchSize).Return(nil, errors.New("connection reset"))

	sweeper := NewAuctionSweeper(AuctionSweeperParams{AuctionRepo: repo, Ledger: ledger, Logger: zerolog.Nop()})
	defer sweeper.Stop(context.Background())

	closed, failed := sweeper.SweepOnce(context.Background(), now)
	require.Zero(t, closed)
	require.Zero(t, failed)
}

func TestAuctionSweeper_ClosesExpiredAuctionsThroughLedger(t *testing.T) {
	store := memory.NewAuctionStore()
	ledger := app.NewLedger(app.LedgerParams{AuctionRepo: store, Logger: zerolog.Nop()})
	now := time.Now().UTC()
	ctx := context.Background()

	listing := shared.Listing{
		Title:       "Oak writing desk",
		Description: "Solid oak desk with three drawers",
		ImageRef:    "https://example.com/desk.jpg",
	}
	expired := auction.New(uuid.New(), listing, decimal.NewFromInt(100), now.Add(time.Minute), now)
	running := auction.New(uuid.New(), listing, decimal.NewFromInt(100), now.Add(time.Hour), now)
	require.NoError(t, store.Create(ctx, expired))
	require.NoError(t, store.Create(ctx, running))

	bidder := uuid.New()
	_, err := ledger.PlaceBid(ctx, inboundBid(expired.ID, bidder, 150, now))
	require.NoError(t, err)

	sweeper := NewAuctionSweeper(AuctionSweeperParams{AuctionRepo: store, Ledger: ledger, Logger: zerolog.Nop()})
	defer sweeper.Stop(ctx)

	later := now.Add(2 * time.Minute)
	closed, failed := sweeper.SweepOnce(ctx, later)
	require.Equal(t, 1, closed)
	require.Zero(t, failed)

	got, err := store.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Equal(t, auction.StatusEnded, got.Status)
	require.Equal(t, bidder, *got.WinnerID)

	got, err = store.GetByID(ctx, running.ID)
	require.NoError(t, err)
	require.Equal(t, auction.StatusActive, got.Status)

	// a second pass finds nothing left to close
	closed, failed = sweeper.SweepOnce(ctx, later)
	require.Zero(t, closed)
	require.Zero(t, failed)
}

func TestAuctionSweeper_StartRunsImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outmocks.NewMockAuctionRepository(ctrl)
	ledger := inmocks.NewMockLedgerService(ctrl)

	repo.EXPECT().QueryExpiredActive(gomock.Any(), gomock.Any(), defaultSweepBatchSize).Return(nil, nil).Times(1)

	sweeper := NewAuctionSweeper(AuctionSweeperParams{
		AuctionRepo: repo,
		Ledger:      ledger,
		Interval:    time.Hour,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, sweeper.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sweeper.Stop(ctx)
}

func TestAuctionSweeper_SweepOnce_AfterStopIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outmocks.NewMockAuctionRepository(ctrl)
	ledger := inmocks.NewMockLedgerService(ctrl)

	sweeper := NewAuctionSweeper(AuctionSweeperParams{AuctionRepo: repo, Ledger: ledger, Logger: zerolog.Nop()})
	sweeper.Stop(context.Background())

	require.NotPanics(t, func() {
		closed, failed := sweeper.SweepOnce(context.Background(), time.Now().UTC())
		require.Zero(t, closed)
		require.Zero(t, failed)
	})
}

func TestAuctionSweeper_StopDuringSweepSkipsRemainingSubmits(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := outmocks.NewMockAuctionRepository(ctrl)
	ledger := inmocks.NewMockLedgerService(ctrl)
	now := time.Now().UTC()

	sweeper := NewAuctionSweeper(AuctionSweeperParams{AuctionRepo: repo, Ledger: ledger, Logger: zerolog.Nop()})

	// shutdown lands between the query and the submits, as after a Stop timeout
	repo.EXPECT().QueryExpiredActive(gomock.Any(), now, defaultSweepBatchSize).
		DoAndReturn(func(_ context.Context, _ time.Time, _ int) ([]uuid.UUID, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			sweeper.Stop(ctx)
			return []uuid.UUID{uuid.New(), uuid.New()}, nil
		})

	require.NotPanics(t, func() {
		closed, failed := sweeper.SweepOnce(context.Background(), now)
		require.Zero(t, closed)
		require.Zero(t, failed)
	})
}

func inboundBid(auctionID, bidderID uuid.UUID, amount int64, now time.Time) inbound.PlaceBidRequest {
	return inbound.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
		Now:       now,
	}
}
