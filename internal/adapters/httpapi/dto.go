package httpapi

import (
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAuctionRequest only checks presence; the listing rules live with the listing
type CreateAuctionRequest struct {
	Title         string           `json:"title" binding:"required"`
	Description   string           `json:"description" binding:"required"`
	ImageRef      string           `json:"image_ref" binding:"required"`
	StartingPrice *decimal.Decimal `json:"starting_price" binding:"required"`
	EndTime       *time.Time       `json:"end_time" binding:"required"`
}

type UpdateListingRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageRef    *string `json:"image_ref"`
}

type ListAuctionsQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=active ended cancelled"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

type PlaceBidRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

type BidResponse struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    string    `json:"amount"`
	Timestamp string    `json:"timestamp"`
}

// AuctionResponse is an auction with its projections computed at read time
type AuctionResponse struct {
	ID            uuid.UUID     `json:"id"`
	OwnerID       uuid.UUID     `json:"owner_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	ImageRef      string        `json:"image_ref"`
	StartingPrice string        `json:"starting_price"`
	CurrentPrice  string        `json:"current_price"`
	EndTime       string        `json:"end_time"`
	Status        string        `json:"status"`
	WinnerID      *uuid.UUID    `json:"winner_id"`
	IsActive      bool          `json:"is_active"`
	TimeRemaining int64         `json:"time_remaining_seconds"`
	BidCount      int           `json:"bid_count"`
	HighestBid    *BidResponse  `json:"highest_bid,omitempty"`
	Bids          []BidResponse `json:"bids,omitempty"`
	Version       int64         `json:"version"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

type EndResultResponse struct {
	AuctionID  uuid.UUID  `json:"auction_id"`
	WinnerID   *uuid.UUID `json:"winner_id"`
	FinalPrice string     `json:"final_price"`
	Status     string     `json:"status"`
	Changed    bool       `json:"changed"`
}

type DashboardStatsResponse struct {
	TotalAuctions     int `json:"total_auctions"`
	ActiveAuctions    int `json:"active_auctions"`
	EndedAuctions     int `json:"ended_auctions"`
	CancelledAuctions int `json:"cancelled_auctions"`
	TotalBids         int `json:"total_bids"`
}

type BidderTotalResponse struct {
	BidderID    uuid.UUID `json:"bidder_id"`
	TotalBids   int       `json:"total_bids"`
	TotalAmount string    `json:"total_amount"`
}

type DashboardResponse struct {
	Stats          DashboardStatsResponse `json:"stats"`
	RecentAuctions []AuctionResponse      `json:"recent_auctions"`
	TopBidders     []BidderTotalResponse  `json:"top_bidders"`
}

type PlaceBidResponse struct {
	Bid          BidResponse `json:"bid"`
	CurrentPrice string      `json:"current_price"`
}

func newBidResponse(b bid.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount.String(),
		Timestamp: b.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func newBidResponses(bids []bid.Bid) []BidResponse {
	resp := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, newBidResponse(b))
	}
	return resp
}

func newAuctionResponse(a *auction.Auction, now time.Time, withBids bool) AuctionResponse {
	resp := AuctionResponse{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		Title:         a.Listing.Title,
		Description:   a.Listing.Description,
		ImageRef:      a.Listing.ImageRef,
		StartingPrice: a.StartingPrice.String(),
		CurrentPrice:  a.CurrentPrice.String(),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Status:        string(a.Status),
		WinnerID:      a.WinnerID,
		IsActive:      a.IsActive(now),
		TimeRemaining: int64(a.TimeRemaining(now).Seconds()),
		BidCount:      len(a.Bids),
		Version:       a.Version,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if highest := a.HighestBid(); highest != nil {
		b := newBidResponse(*highest)
		resp.HighestBid = &b
	}
	if withBids {
		resp.Bids = newBidResponses(a.Bids)
	}
	return resp
}

func newEndResultResponse(result *shared.AuctionEndResult) EndResultResponse {
	return EndResultResponse{
		AuctionID:  result.AuctionID,
		WinnerID:   result.WinnerID,
		FinalPrice: result.FinalPrice.String(),
		Status:     result.Status,
		Changed:    result.Changed,
	}
}

func newDashboardResponse(stats *auction.Stats, now time.Time) DashboardResponse {
	resp := DashboardResponse{
		Stats: DashboardStatsResponse{
			TotalAuctions:     stats.TotalAuctions,
			ActiveAuctions:    stats.ActiveAuctions,
			EndedAuctions:     stats.EndedAuctions,
			CancelledAuctions: stats.CancelledAuctions,
			TotalBids:         stats.TotalBids,
		},
		RecentAuctions: make([]AuctionResponse, 0, len(stats.RecentAuctions)),
		TopBidders:     make([]BidderTotalResponse, 0, len(stats.TopBidders)),
	}
	for _, a := range stats.RecentAuctions {
		resp.RecentAuctions = append(resp.RecentAuctions, newAuctionResponse(a, now, false))
	}
	for _, total := range stats.TopBidders {
		resp.TopBidders = append(resp.TopBidders, BidderTotalResponse{
			BidderID:    total.BidderID,
			TotalBids:   total.BidCount,
			TotalAmount: total.TotalAmount.String(),
		})
	}
	return resp
}
