package shared

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionEndResult represents the outcome of a close or cancel request.
// Changed is false when the auction had already left the active state and
// the call was a no-op.
type AuctionEndResult struct {
	AuctionID  uuid.UUID
	WinnerID   *uuid.UUID
	FinalPrice decimal.Decimal
	Status     string
	Changed    bool
}

// MaxAmountScale is the most decimal places a price or bid may carry. The SQL
// stores keep amounts in DECIMAL(30,10) columns.
const MaxAmountScale = 10

// AmountFitsScale reports whether d survives storage without rounding
func AmountFitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MaxAmountScale))
}
