package app

import (
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/shopspring/decimal"
)

// Event payloads carry ids and amounts as strings so every transport sees the
// same shape.

func bidPlacedEvent(b bid.Bid, currentPrice decimal.Decimal) outbound.Event {
	return outbound.Event{
		Type:      outbound.EventTypeBidPlaced,
		AuctionID: b.AuctionID,
		Data: map[string]interface{}{
			"auction_id":    b.AuctionID.String(),
			"bid_id":        b.ID.String(),
			"bidder_id":     b.BidderID.String(),
			"amount":        b.Amount.String(),
			"current_price": currentPrice.String(),
			"timestamp":     b.Timestamp.Format(time.RFC3339Nano),
		},
		Timestamp: b.Timestamp.Unix(),
	}
}

func auctionEndedEvent(result *shared.AuctionEndResult, trigger auction.CloseTrigger) outbound.Event {
	data := map[string]interface{}{
		"auction_id":  result.AuctionID.String(),
		"winner_id":   nil,
		"final_price": result.FinalPrice.String(),
		"status":      result.Status,
		"trigger":     string(trigger),
	}
	if result.WinnerID != nil {
		data["winner_id"] = result.WinnerID.String()
	}

	return outbound.Event{
		Type:      outbound.EventTypeAuctionEnded,
		AuctionID: result.AuctionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

func auctionCancelledEvent(result *shared.AuctionEndResult) outbound.Event {
	return outbound.Event{
		Type:      outbound.EventTypeAuctionCancelled,
		AuctionID: result.AuctionID,
		Data: map[string]interface{}{
			"auction_id": result.AuctionID.String(),
			"status":     result.Status,
		},
		Timestamp: time.Now().Unix(),
	}
}

func auctionCreatedEvent(a *auction.Auction) outbound.Event {
	return outbound.Event{
		Type:      outbound.EventTypeAuctionCreated,
		AuctionID: a.ID,
		Data: map[string]interface{}{
			"auction_id":     a.ID.String(),
			"owner_id":       a.OwnerID.String(),
			"title":          a.Listing.Title,
			"starting_price": a.StartingPrice.String(),
			"end_time":       a.EndTime.Format(time.RFC3339),
		},
		Timestamp: a.CreatedAt.Unix(),
	}
}

func auctionUpdatedEvent(a *auction.Auction) outbound.Event {
	return outbound.Event{
		Type:      outbound.EventTypeAuctionUpdated,
		AuctionID: a.ID,
		Data: map[string]interface{}{
			"auction_id":  a.ID.String(),
			"title":       a.Listing.Title,
			"description": a.Listing.Description,
			"image_ref":   a.Listing.ImageRef,
		},
		Timestamp: a.UpdatedAt.Unix(),
	}
}
