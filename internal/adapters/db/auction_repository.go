package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
)

const auctionColumns = `id, title, description, image_ref, owner_id, starting_price, current_price,
	end_time, status, winner_id, version, created_at, updated_at`

const bidColumns = `id, auction_id, bidder_id, amount, placed_at`

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type errRow struct{ err error }

func (r errRow) Scan(...interface{}) error { return r.err }

// AuctionRepository stores auctions in a SQL database. The bid sequence lives
// in a child table written only through Create and Save.
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	a.Version = 0

	err := r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO auctions (` + auctionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err := r.exec(ctx, tx, query,
			a.ID,
			a.Listing.Title,
			a.Listing.Description,
			a.Listing.ImageRef,
			a.OwnerID,
			a.StartingPrice,
			a.CurrentPrice,
			a.EndTime.UTC(),
			a.Status,
			nullableUUID(a.WinnerID),
			a.Version,
			a.CreatedAt.UTC(),
			a.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to create auction: %w", err)
		}

		for i, b := range a.Bids {
			if err := r.insertBid(ctx, tx, b, i); err != nil {
				return err
			}
		}
		return nil
	})

	return err
}

// GetByID retrieves an auction and its bids by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	db := r.conn.GetDB()

	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	a, err := scanAuction(r.queryRow(ctx, db, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	if a.Bids, err = r.loadBids(ctx, db, a.ID); err != nil {
		return nil, err
	}

	return a, nil
}

// Save writes the auction back if nobody else has since the caller read it
func (r *AuctionRepository) Save(ctx context.Context, a *auction.Auction) error {
	err := r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE auctions
			SET title = $1, description = $2, image_ref = $3, current_price = $4, status = $5,
				winner_id = $6, updated_at = $7, version = version + 1
			WHERE id = $8 AND version = $9
		`
		result, err := r.exec(ctx, tx, query,
			a.Listing.Title,
			a.Listing.Description,
			a.Listing.ImageRef,
			a.CurrentPrice,
			a.Status,
			nullableUUID(a.WinnerID),
			a.UpdatedAt.UTC(),
			a.ID,
			a.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update auction: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return r.missingOrConflict(ctx, tx, a.ID)
		}

		var stored int
		if err := r.queryRow(ctx, tx, `SELECT COUNT(*) FROM bids WHERE auction_id = $1`, a.ID).Scan(&stored); err != nil {
			return fmt.Errorf("failed to count bids: %w", err)
		}
		if stored > len(a.Bids) {
			return shared.ErrConflict
		}

		for i := stored; i < len(a.Bids); i++ {
			if err := r.insertBid(ctx, tx, a.Bids[i], i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.Version++
	return nil
}

// QueryExpiredActive returns active auctions whose end time has passed
func (r *AuctionRepository) QueryExpiredActive(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM auctions
		WHERE status = $1 AND end_time <= $2
		ORDER BY end_time ASC
		LIMIT $3
	`

	rows, err := r.query(ctx, r.conn.GetDB(), query, auction.StatusActive, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired auctions: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired auctions: %w", err)
	}

	return ids, nil
}

// List retrieves a list of auctions with optional filters
func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, now time.Time, page, pageSize int) ([]*auction.Auction, error) {
	db := r.conn.GetDB()

	var (
		whereClause string
		args        []interface{}
	)
	switch {
	case status == nil:
	case *status == auction.StatusActive:
		whereClause = "WHERE status = $1 AND end_time > $2 "
		args = append(args, *status, now.UTC())
	default:
		whereClause = "WHERE status = $1 "
		args = append(args, *status)
	}
	argCount := len(args) + 1

	query := fmt.Sprintf(`SELECT %s FROM auctions %sORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		auctionColumns, whereClause, argCount, argCount+1)
	args = append(args, pageSize, (page-1)*pageSize)

	auctions, err := r.queryAuctions(ctx, db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

// ListBidsByBidder returns a bidder's bids across all auctions, newest first
func (r *AuctionRepository) ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE bidder_id = $1 ORDER BY placed_at DESC`

	rows, err := r.query(ctx, r.conn.GetDB(), query, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids by bidder: %w", err)
	}
	defer rows.Close()

	return scanBids(rows)
}

// Delete deletes an auction and its bids
func (r *AuctionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.exec(ctx, tx, `DELETE FROM bids WHERE auction_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete bids: %w", err)
		}

		result, err := r.exec(ctx, tx, `DELETE FROM auctions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete auction: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrAuctionNotFound
		}
		return nil
	})
}

// Stats aggregates the dashboard figures in the database
func (r *AuctionRepository) Stats(ctx context.Context, now time.Time, limit int) (*auction.Stats, error) {
	db := r.conn.GetDB()
	stats := &auction.Stats{}

	countQuery := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = $1 AND end_time > $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = $3 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = $4 THEN 1 ELSE 0 END), 0)
		FROM auctions
	`
	err := r.queryRow(ctx, db, countQuery,
		auction.StatusActive, now.UTC(), auction.StatusEnded, auction.StatusCancelled,
	).Scan(&stats.TotalAuctions, &stats.ActiveAuctions, &stats.EndedAuctions, &stats.CancelledAuctions)
	if err != nil {
		return nil, fmt.Errorf("failed to count auctions: %w", err)
	}

	if err := r.queryRow(ctx, db, `SELECT COUNT(*) FROM bids`).Scan(&stats.TotalBids); err != nil {
		return nil, fmt.Errorf("failed to count bids: %w", err)
	}

	recentQuery := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at DESC LIMIT $1`
	if stats.RecentAuctions, err = r.queryAuctions(ctx, db, recentQuery, limit); err != nil {
		return nil, fmt.Errorf("failed to load recent auctions: %w", err)
	}

	topQuery := `
		SELECT bidder_id, COUNT(*), SUM(amount)
		FROM bids
		GROUP BY bidder_id
		ORDER BY SUM(amount) DESC, COUNT(*) DESC
		LIMIT $1
	`
	rows, err := r.query(ctx, db, topQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bidders: %w", err)
	}
	defer rows.Close()

	stats.TopBidders = []auction.BidderTotal{}
	for rows.Next() {
		var total auction.BidderTotal
		if err := rows.Scan(&total.BidderID, &total.BidCount, &total.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan bidder total: %w", err)
		}
		stats.TopBidders = append(stats.TopBidders, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bidder totals: %w", err)
	}

	return stats, nil
}

// queryAuctions runs a query over auctionColumns and loads each row's bids
func (r *AuctionRepository) queryAuctions(ctx context.Context, q querier, query string, args ...interface{}) ([]*auction.Auction, error) {
	rows, err := r.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}

	auctions := []*auction.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}
	rows.Close()

	for _, a := range auctions {
		if a.Bids, err = r.loadBids(ctx, q, a.ID); err != nil {
			return nil, err
		}
	}

	return auctions, nil
}

func (r *AuctionRepository) insertBid(ctx context.Context, q querier, b bid.Bid, seq int) error {
	query := `
		INSERT INTO bids (id, auction_id, seq, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.exec(ctx, q, query, b.ID, b.AuctionID, seq, b.BidderID, b.Amount, b.Timestamp.UTC()); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (r *AuctionRepository) loadBids(ctx context.Context, q querier, auctionID uuid.UUID) ([]bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY seq ASC`

	rows, err := r.query(ctx, q, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bids: %w", err)
	}
	defer rows.Close()

	return scanBids(rows)
}

// missingOrConflict tells apart the two reasons a versioned update can miss
func (r *AuctionRepository) missingOrConflict(ctx context.Context, q querier, id uuid.UUID) error {
	var exists int
	err := r.queryRow(ctx, q, `SELECT 1 FROM auctions WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.ErrAuctionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check auction: %w", err)
	}
	return shared.ErrConflict
}

func (r *AuctionRepository) exec(ctx context.Context, q querier, query string, args ...interface{}) (sql.Result, error) {
	query, args, err := r.conn.Dialect().Rebind(query, args)
	if err != nil {
		return nil, err
	}
	return q.ExecContext(ctx, query, args...)
}

func (r *AuctionRepository) query(ctx context.Context, q querier, query string, args ...interface{}) (*sql.Rows, error) {
	query, args, err := r.conn.Dialect().Rebind(query, args)
	if err != nil {
		return nil, err
	}
	return q.QueryContext(ctx, query, args...)
}

func (r *AuctionRepository) queryRow(ctx context.Context, q querier, query string, args ...interface{}) scanner {
	query, args, err := r.conn.Dialect().Rebind(query, args)
	if err != nil {
		return errRow{err: err}
	}
	return q.QueryRowContext(ctx, query, args...)
}

func scanAuction(s scanner) (*auction.Auction, error) {
	var (
		a      auction.Auction
		winner uuid.NullUUID
	)
	err := s.Scan(
		&a.ID,
		&a.Listing.Title,
		&a.Listing.Description,
		&a.Listing.ImageRef,
		&a.OwnerID,
		&a.StartingPrice,
		&a.CurrentPrice,
		&a.EndTime,
		&a.Status,
		&winner,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if winner.Valid {
		id := winner.UUID
		a.WinnerID = &id
	}
	a.EndTime = a.EndTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.Bids = []bid.Bid{}

	return &a, nil
}

func scanBids(rows *sql.Rows) ([]bid.Bid, error) {
	bids := []bid.Bid{}
	for rows.Next() {
		var b bid.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return bids, nil
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
