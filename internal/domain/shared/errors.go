package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrAuctionClosed       = errors.New("auction is not accepting bids")
	ErrAuctionNotExpired   = errors.New("auction end time has not been reached")
	ErrInvalidCloseTrigger = errors.New("invalid close trigger")

	// Bid errors
	ErrSelfBidForbidden = errors.New("you cannot bid on your own auction")
	ErrBidTooLow        = errors.New("bid amount too low")

	// Listing edit errors
	ErrNotAuctionOwner = errors.New("you can only update your own auctions")

	// Listing validation errors
	ErrInvalidTitle         = errors.New("title must be 3-100 characters")
	ErrInvalidDescription   = errors.New("description must be 10-1000 characters")
	ErrInvalidImageRef      = errors.New("image reference must be an http(s) URL or a base64 image data URL")
	ErrInvalidStartingPrice = errors.New("starting price must not be negative or carry more than 10 decimal places")
	ErrInvalidEndTime       = errors.New("end time must be in the future")
	ErrOwnerRequired        = errors.New("owner is required")

	// Persistence errors
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrConflict           = errors.New("auction was modified concurrently")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrUserIDRequired = errors.New("user id is required")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrAuctionIDRequired   = errors.New("auction_id is required")
	ErrInvalidAmount       = errors.New("valid amount with at most 10 decimal places is required")
	ErrUnknownMessageType  = errors.New("unknown message type")
)

// BidTooLowError is returned when a bid does not exceed the prevailing price.
// It matches ErrBidTooLow under errors.Is.
type BidTooLowError struct {
	CurrentPrice decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be higher than current price of %s", e.CurrentPrice.String())
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

// NewBidTooLowError builds the rejection for a stale or insufficient bid.
func NewBidTooLowError(currentPrice decimal.Decimal) error {
	return &BidTooLowError{CurrentPrice: currentPrice}
}

// IsDomainError reports whether err is one of the ledger's caller-facing
// rejections, as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrAuctionNotFound) ||
		errors.Is(err, ErrAuctionClosed) ||
		errors.Is(err, ErrAuctionNotExpired) ||
		errors.Is(err, ErrInvalidCloseTrigger) ||
		errors.Is(err, ErrSelfBidForbidden) ||
		errors.Is(err, ErrBidTooLow) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNotAuctionOwner) ||
		errors.Is(err, ErrInvalidTitle) ||
		errors.Is(err, ErrInvalidDescription) ||
		errors.Is(err, ErrInvalidImageRef)
}
