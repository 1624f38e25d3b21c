package auction

import (
	"time"

	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the current status of an auction
type Status string

const (
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// CloseTrigger identifies who asked for an auction to be closed
type CloseTrigger string

const (
	TriggerExpiry      CloseTrigger = "expiry"
	TriggerManualAdmin CloseTrigger = "manual_admin"
)

// Auction is the aggregate owned by the ledger. Bids is append-only and in
// acceptance order; Version is bumped by the store on every successful save.
type Auction struct {
	ID            uuid.UUID       `json:"id"`
	Listing       shared.Listing  `json:"listing"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	EndTime       time.Time       `json:"end_time"`
	Status        Status          `json:"status"`
	WinnerID      *uuid.UUID      `json:"winner_id,omitempty"`
	Bids          []bid.Bid       `json:"bids"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// New creates an active auction whose current price starts at the starting price
func New(ownerID uuid.UUID, listing shared.Listing, startingPrice decimal.Decimal, endTime, now time.Time) *Auction {
	return &Auction{
		ID:            uuid.New(),
		Listing:       listing,
		OwnerID:       ownerID,
		StartingPrice: startingPrice,
		CurrentPrice:  startingPrice,
		EndTime:       endTime,
		Status:        StatusActive,
		Bids:          []bid.Bid{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive returns true if the auction can still take bids at now
func (a *Auction) IsActive(now time.Time) bool {
	return a.Status == StatusActive && now.Before(a.EndTime)
}

// MatchesStatus applies a listing filter. A nil status matches everything;
// the active filter leaves out auctions whose end time has passed even if the
// sweeper has not closed them yet.
func MatchesStatus(a *Auction, status *Status, now time.Time) bool {
	switch {
	case status == nil:
		return true
	case *status == StatusActive:
		return a.IsActive(now)
	default:
		return a.Status == *status
	}
}

// IsEnded returns true if the auction has ended
func (a *Auction) IsEnded() bool {
	return a.Status == StatusEnded
}

// TimeRemaining returns how long the auction has left, never negative
func (a *Auction) TimeRemaining(now time.Time) time.Duration {
	if a.Status != StatusActive {
		return 0
	}
	if left := a.EndTime.Sub(now); left > 0 {
		return left
	}
	return 0
}

// HighestBid returns the winning bid so far, or nil when there are no bids
func (a *Auction) HighestBid() *bid.Bid {
	if len(a.Bids) == 0 {
		return nil
	}
	best := a.Bids[0]
	for _, b := range a.Bids[1:] {
		if b.Outranks(best) {
			best = b
		}
	}
	return &best
}

// HighestBidder returns the bidder of the highest bid, or nil
func (a *Auction) HighestBidder() *uuid.UUID {
	if best := a.HighestBid(); best != nil {
		id := best.BidderID
		return &id
	}
	return nil
}

// PlaceBid applies the acceptance rule and appends the bid. Checks run in a
// fixed order and the first failure wins; on failure the auction is untouched.
func (a *Auction) PlaceBid(bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (bid.Bid, error) {
	if !a.IsActive(now) {
		return bid.Bid{}, shared.ErrAuctionClosed
	}
	if bidderID == a.OwnerID {
		return bid.Bid{}, shared.ErrSelfBidForbidden
	}
	if !amount.GreaterThan(a.CurrentPrice) {
		return bid.Bid{}, shared.NewBidTooLowError(a.CurrentPrice)
	}

	newBid := bid.New(a.ID, bidderID, amount, now)
	a.Bids = append(a.Bids, newBid)
	a.CurrentPrice = amount
	a.UpdatedAt = now

	return newBid, nil
}

// Close ends an active auction and fixes the winner. It reports false without
// error when the auction had already left the active state.
func (a *Auction) Close(now time.Time, trigger CloseTrigger) (bool, error) {
	switch trigger {
	case TriggerExpiry, TriggerManualAdmin:
	default:
		return false, shared.ErrInvalidCloseTrigger
	}

	if a.Status != StatusActive {
		return false, nil
	}
	if trigger == TriggerExpiry && now.Before(a.EndTime) {
		return false, shared.ErrAuctionNotExpired
	}

	a.Status = StatusEnded
	a.WinnerID = a.HighestBidder()
	a.UpdatedAt = now

	return true, nil
}

// Cancel withdraws an active auction without a winner
func (a *Auction) Cancel(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	a.Status = StatusCancelled
	a.WinnerID = nil
	a.UpdatedAt = now
	return true
}

// UpdateListing replaces the descriptive fields. Only the owner may edit, and
// only while the auction still accepts bids.
func (a *Auction) UpdateListing(editorID uuid.UUID, listing shared.Listing, now time.Time) error {
	if editorID != a.OwnerID {
		return shared.ErrNotAuctionOwner
	}
	if !a.IsActive(now) {
		return shared.ErrAuctionClosed
	}
	if err := listing.Validate(); err != nil {
		return err
	}

	a.Listing = listing
	a.UpdatedAt = now
	return nil
}

// EndResult summarises the terminal state of the auction
func (a *Auction) EndResult(changed bool) *shared.AuctionEndResult {
	result := &shared.AuctionEndResult{
		AuctionID:  a.ID,
		FinalPrice: a.CurrentPrice,
		Status:     string(a.Status),
		Changed:    changed,
	}
	if a.WinnerID != nil {
		id := *a.WinnerID
		result.WinnerID = &id
	}
	return result
}

// Clone returns a deep copy so stores never share the bid slice with callers
func (a *Auction) Clone() *Auction {
	c := *a
	c.Bids = make([]bid.Bid, len(a.Bids))
	copy(c.Bids, a.Bids)
	if a.WinnerID != nil {
		id := *a.WinnerID
		c.WinnerID = &id
	}
	return &c
}
