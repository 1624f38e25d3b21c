package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid represents an accepted offer on an auction. Rejected attempts are never
// recorded.
type Bid struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// New creates a bid stamped with the given time
func New(auctionID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) Bid {
	return Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Timestamp: now,
	}
}

// Outranks reports whether b beats other for the win: a higher amount, or the
// same amount placed earlier.
func (b Bid) Outranks(other Bid) bool {
	if cmp := b.Amount.Cmp(other.Amount); cmp != 0 {
		return cmp > 0
	}
	return b.Timestamp.Before(other.Timestamp)
}
