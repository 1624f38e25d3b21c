package db

import (
	"context"
	"testing"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var auctionColumnNames = []string{
	"id", "title", "description", "image_ref", "owner_id", "starting_price", "current_price",
	"end_time", "status", "winner_id", "version", "created_at", "updated_at",
}

func newMockRepository(t *testing.T, dialect Dialect) (*AuctionRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	conn := &Connection{db: sqlDB, dialect: dialect, logger: zerolog.Nop()}
	return NewAuctionRepository(conn), mock
}

func newStoredAuction(t *testing.T, now time.Time, bids int) *auction.Auction {
	t.Helper()
	listing := shared.Listing{
		Title:       "Walnut bookcase",
		Description: "Five shelves, solid walnut, minor wear",
		ImageRef:    "https://example.com/bookcase.jpg",
	}
	a := auction.New(uuid.New(), listing, decimal.NewFromInt(80), now.Add(time.Hour), now)
	for i := 0; i < bids; i++ {
		_, err := a.PlaceBid(uuid.New(), decimal.NewFromInt(int64(90+i)), now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	a.Version = 4
	return a
}

func TestAuctionRepository_Save(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("matching_version_inserts_only_new_bids", func(t *testing.T) {
		repo, mock := newMockRepository(t, DialectPostgres)
		a := newStoredAuction(t, now, 2)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE auctions SET title = \$1`).
			WithArgs(a.Listing.Title, a.Listing.Description, a.Listing.ImageRef, sqlmock.AnyArg(),
				auction.StatusActive, sqlmock.AnyArg(), sqlmock.AnyArg(), a.ID, int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bids WHERE auction_id = \$1`).
			WithArgs(a.ID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec(`INSERT INTO bids`).
			WithArgs(a.Bids[1].ID, a.ID, 1, a.Bids[1].BidderID, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Save(context.Background(), a))
		require.Equal(t, int64(5), a.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale_version_is_a_conflict", func(t *testing.T) {
		repo, mock := newMockRepository(t, DialectPostgres)
		a := newStoredAuction(t, now, 1)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE auctions`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT 1 FROM auctions WHERE id = \$1`).
			WithArgs(a.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
		mock.ExpectRollback()

		err := repo.Save(context.Background(), a)
		require.ErrorIs(t, err, shared.ErrConflict)
		require.Equal(t, int64(4), a.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing_row_is_not_found", func(t *testing.T) {
		repo, mock := newMockRepository(t, DialectPostgres)
		a := newStoredAuction(t, now, 0)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE auctions`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT 1 FROM auctions WHERE id = \$1`).
			WithArgs(a.ID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}))
		mock.ExpectRollback()

		err := repo.Save(context.Background(), a)
		require.ErrorIs(t, err, shared.ErrAuctionNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("more_stored_bids_than_in_memory_is_a_conflict", func(t *testing.T) {
		repo, mock := newMockRepository(t, DialectPostgres)
		a := newStoredAuction(t, now, 1)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE auctions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bids`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectRollback()

		err := repo.Save(context.Background(), a)
		require.ErrorIs(t, err, shared.ErrConflict)
		require.Equal(t, int64(4), a.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mysql_uses_positional_markers", func(t *testing.T) {
		repo, mock := newMockRepository(t, DialectMySQL)
		a := newStoredAuction(t, now, 0)

		mock.ExpectBegin()
		mock.ExpectExec(`WHERE id = \? AND version = \?`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), a.ID, int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bids WHERE auction_id = \?`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectCommit()

		require.NoError(t, repo.Save(context.Background(), a))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuctionRepository_ListActiveFiltersOnEndTime(t *testing.T) {
	repo, mock := newMockRepository(t, DialectPostgres)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE status = \$1 AND end_time > \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(auction.StatusActive, now, 12, 12).
		WillReturnRows(sqlmock.NewRows(auctionColumnNames))

	active := auction.StatusActive
	auctions, err := repo.List(context.Background(), &active, now, 2, 12)
	require.NoError(t, err)
	require.Empty(t, auctions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuctionRepository_Stats(t *testing.T) {
	repo, mock := newMockRepository(t, DialectPostgres)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recentID, ownerID, bidderID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE`).
		WithArgs(auction.StatusActive, now, auction.StatusEnded, auction.StatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "ended", "cancelled"}).AddRow(7, 3, 2, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bids`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(`FROM auctions ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(auctionColumnNames).AddRow(
			recentID.String(), "Walnut bookcase", "Five shelves, solid walnut", "https://example.com/b.jpg",
			ownerID.String(), "80", "80", now.Add(time.Hour), "active", nil, 0, now, now,
		))
	mock.ExpectQuery(`FROM bids WHERE auction_id = \$1 ORDER BY seq ASC`).
		WithArgs(recentID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "auction_id", "bidder_id", "amount", "placed_at"}))
	mock.ExpectQuery(`GROUP BY bidder_id`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"bidder_id", "count", "sum"}).AddRow(bidderID.String(), 4, "412.5"))

	stats, err := repo.Stats(context.Background(), now, 5)
	require.NoError(t, err)
	require.Equal(t, 7, stats.TotalAuctions)
	require.Equal(t, 3, stats.ActiveAuctions)
	require.Equal(t, 2, stats.EndedAuctions)
	require.Equal(t, 1, stats.CancelledAuctions)
	require.Equal(t, 11, stats.TotalBids)
	require.Len(t, stats.RecentAuctions, 1)
	require.Equal(t, recentID, stats.RecentAuctions[0].ID)
	require.Equal(t, auction.StatusActive, stats.RecentAuctions[0].Status)
	require.Len(t, stats.TopBidders, 1)
	require.Equal(t, bidderID, stats.TopBidders[0].BidderID)
	require.Equal(t, 4, stats.TopBidders[0].BidCount)
	require.True(t, decimal.RequireFromString("412.5").Equal(stats.TopBidders[0].TotalAmount))
	require.NoError(t, mock.ExpectationsWereMet())
}
