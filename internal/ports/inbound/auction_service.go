package inbound

//go:generate mockgen -source=auction_service.go -destination=mocks/auction_service_mock.go -package=mocks

import (
	"context"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService is the single authority for mutating an auction's bidding state
type LedgerService interface {
	// PlaceBid validates and records a bid
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error)

	// Close ends an auction. Closing an auction that is no longer active is a no-op.
	Close(ctx context.Context, auctionID uuid.UUID, now time.Time, trigger auction.CloseTrigger) (*shared.AuctionEndResult, error)

	// Cancel withdraws an active auction without a winner
	Cancel(ctx context.Context, auctionID uuid.UUID, now time.Time) (*shared.AuctionEndResult, error)

	// UpdateListing lets the owner edit the listing of an auction still taking bids
	UpdateListing(ctx context.Context, req UpdateListingRequest) (*auction.Auction, error)
}

// AuctionService defines the interface for catalogue operations
type AuctionService interface {
	// CreateAuction creates a new auction
	CreateAuction(ctx context.Context, req CreateAuctionRequest, now time.Time) (*auction.Auction, error)

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// ListAuctions retrieves a list of auctions
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*auction.Auction, error)

	// BidsByBidder returns every bid a user has placed, newest first
	BidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]bid.Bid, error)

	// DeleteAuction removes an auction from the store
	DeleteAuction(ctx context.Context, auctionID uuid.UUID) error

	// Dashboard summarises the catalogue for administrators
	Dashboard(ctx context.Context, now time.Time) (*auction.Stats, error)
}

// request to create an auction
type CreateAuctionRequest struct {
	OwnerID       uuid.UUID       `json:"owner_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ImageRef      string          `json:"image_ref"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndTime       time.Time       `json:"end_time"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Status   *auction.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Now      time.Time       `json:"-"`
}

// request to place a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Now       time.Time       `json:"-"`
}

// request to edit an auction's listing
type UpdateListingRequest struct {
	AuctionID uuid.UUID           `json:"auction_id"`
	EditorID  uuid.UUID           `json:"editor_id"`
	Patch     shared.ListingPatch `json:"patch"`
	Now       time.Time           `json:"-"`
}

// result of an accepted bid
type PlaceBidResult struct {
	Bid          bid.Bid         `json:"bid"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}
