package httpapi

import (
	"net/http"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UserIDHeader identifies the acting user on owner and bidder routes
const UserIDHeader = "X-User-ID"

// Handler maps REST routes onto the catalogue service and the ledger. It holds
// no bidding rules of its own.
type Handler struct {
	auctionService inbound.AuctionService
	ledger         inbound.LedgerService
	clock          func() time.Time
	logger         zerolog.Logger
}

type HandlerParams struct {
	AuctionService inbound.AuctionService
	Ledger         inbound.LedgerService
	Clock          func() time.Time
	Logger         zerolog.Logger
}

func NewHandler(params HandlerParams) *Handler {
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Handler{
		auctionService: params.AuctionService,
		ledger:         params.Ledger,
		clock:          clock,
		logger:         params.Logger.With().Str("component", "http_handler").Logger(),
	}
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auction-ledger"})
}

// CreateAuction handles POST /api/auctions
func (h *Handler) CreateAuction(c *gin.Context) {
	ownerID, err := userIDFromHeader(c)
	if err != nil {
		JSONError(c, err)
		return
	}

	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Invalid create auction payload")
		JSONError(c, shared.ErrInvalidRequest)
		return
	}

	now := h.clock()
	created, err := h.auctionService.CreateAuction(c.Request.Context(), inbound.CreateAuctionRequest{
		OwnerID:       ownerID,
		Title:         req.Title,
		Description:   req.Description,
		ImageRef:      req.ImageRef,
		StartingPrice: *req.StartingPrice,
		EndTime:       *req.EndTime,
	}, now)
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusCreated, newAuctionResponse(created, now, false), "auction created successfully")
}

// ListAuctions handles GET /api/auctions
func (h *Handler) ListAuctions(c *gin.Context) {
	var query ListAuctionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Warn().Err(err).Msg("Invalid list auctions query")
		JSONError(c, shared.ErrInvalidRequest)
		return
	}

	now := h.clock()
	req := inbound.ListAuctionsRequest{
		Page:     query.Page,
		PageSize: query.PageSize,
		Now:      now,
	}
	if query.Status != "" {
		status := auction.Status(query.Status)
		req.Status = &status
	}

	auctions, err := h.auctionService.ListAuctions(c.Request.Context(), req)
	if err != nil {
		JSONError(c, err)
		return
	}

	resp := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, newAuctionResponse(a, now, false))
	}

	JSONResponse(c, http.StatusOK, resp, "auctions retrieved successfully")
}

// GetAuction handles GET /api/auctions/:id
func (h *Handler) GetAuction(c *gin.Context) {
	auctionID, err := uuidParam(c, "id")
	if err != nil {
		JSONError(c, err)
		return
	}

	found, err := h.auctionService.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusOK, newAuctionResponse(found, h.clock(), true), "auction retrieved successfully")
}

// PlaceBid handles POST /api/auctions/:id/bids
func (h *Handler) PlaceBid(c *gin.Context) {
	auctionID, err := uuidParam(c, "id")
	if err != nil {
		JSONError(c, err)
		return
	}

	bidderID, err := userIDFromHeader(c)
	if err != nil {
		JSONError(c, err)
		return
	}

	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Invalid bid payload")
		JSONError(c, shared.ErrInvalidAmount)
		return
	}

	result, err := h.ledger.PlaceBid(c.Request.Context(), inbound.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    *req.Amount,
		Now:       h.clock(),
	})
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusCreated, PlaceBidResponse{
		Bid:          newBidResponse(result.Bid),
		CurrentPrice: result.CurrentPrice.String(),
	}, "bid placed successfully")
}

// UpdateListing handles PUT /api/auctions/:id
func (h *Handler) UpdateListing(c *gin.Context) {
	auctionID, err := uuidParam(c, "id")
	if err != nil {
		JSONError(c, err)
		return
	}

	editorID, err := userIDFromHeader(c)
	if err != nil {
		JSONError(c, err)
		return
	}

	var req UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Invalid listing update payload")
		JSONError(c, shared.ErrInvalidRequest)
		return
	}

	now := h.clock()
	updated, err := h.ledger.UpdateListing(c.Request.Context(), inbound.UpdateListingRequest{
		AuctionID: auctionID,
		EditorID:  editorID,
		Patch: shared.ListingPatch{
			Title:       req.Title,
			Description: req.Description,
			ImageRef:    req.ImageRef,
		},
		Now: now,
	})
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusOK, newAuctionResponse(updated, now, false), "auction updated successfully")
}

// BidsByUser handles GET /api/users/:id/bids
func (h *Handler) BidsByUser(c *gin.Context) {
	userID, err := uuidParam(c, "id")
	if err != nil {
		JSONError(c, err)
		return
	}

	bids, err := h.auctionService.BidsByBidder(c.Request.Context(), userID)
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusOK, newBidResponses(bids), "bids retrieved successfully")
}

// Dashboard handles GET /api/admin/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	now := h.clock()
	stats, err := h.auctionService.Dashboard(c.Request.Context(), now)
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusOK, newDashboardResponse(stats, now), "dashboard retrieved successfully")
}

// CloseAuction handles POST /api/admin/auctions/:id/close
func (h *Handler) CloseAuction(c *gin.Context) {
	auctionID, err := uuidParam(c, "id")
	if err != nil {
		JSONError(c, err)
		return
	}

	result, err := h.ledger.Close(c.Request.Context(), auctionID, h.clock(), auction.TriggerManualAdmin)
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusOK, newEndResultResponse(result), "auction closed")
}

// CancelAuction handles POST /api/admin/auctions/:id/cancel
func (h *Handler) CancelAuction(c *gin.Context) {
	auctionID, err := uuidParam(c, "id")
	if err != nil {
		JSONError(c, err)
		return
	}

	result, err := h.ledger.Cancel(c.Request.Context(), auctionID, h.clock())
	if err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusOK, newEndResultResponse(result), "auction cancelled")
}

// DeleteAuction handles DELETE /api/admin/auctions/:id
func (h *Handler) DeleteAuction(c *gin.Context) {
	auctionID, err := uuidParam(c, "id")
	if err != nil {
		JSONError(c, err)
		return
	}

	if err := h.auctionService.DeleteAuction(c.Request.Context(), auctionID); err != nil {
		JSONError(c, err)
		return
	}

	JSONResponse(c, http.StatusOK, gin.H{"auction_id": auctionID}, "auction deleted")
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, shared.ErrInvalidRequest
	}
	return id, nil
}

func userIDFromHeader(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.GetHeader(UserIDHeader))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, shared.ErrUserIDRequired
	}
	return id, nil
}
