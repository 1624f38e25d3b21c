package outbound

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"

	"github.com/google/uuid"
)

// AuctionRepository defines the interface for auction data operations.
// The auction document, including its bid sequence, is the unit of storage.
type AuctionRepository interface {
	// Create stores a new auction at version 0
	Create(ctx context.Context, auction *auction.Auction) error

	// GetByID retrieves an auction by ID, or shared.ErrAuctionNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// Save persists an auction read earlier. The stored version must still equal
	// auction.Version, otherwise shared.ErrConflict is returned. On success the
	// version is incremented both in the store and on the passed auction.
	Save(ctx context.Context, auction *auction.Auction) error

	// QueryExpiredActive returns up to limit active auctions whose end time is
	// at or before now, oldest first
	QueryExpiredActive(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// List retrieves a page of auctions, newest first, with an optional status
	// filter. The active filter also requires the end time to be after now.
	List(ctx context.Context, status *auction.Status, now time.Time, page, pageSize int) ([]*auction.Auction, error)

	// ListBidsByBidder derives a bidder's history from the auction bid sequences
	ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]bid.Bid, error)

	// Delete removes an auction and its bids
	Delete(ctx context.Context, id uuid.UUID) error

	// Stats aggregates catalogue counts, the newest auctions and the top
	// bidders, returning up to limit entries for each list
	Stats(ctx context.Context, now time.Time, limit int) (*auction.Stats, error)
}
