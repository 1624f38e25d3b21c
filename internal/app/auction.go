package app

import (
	"context"
	"errors"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPage     = 1
	defaultPageSize = 12
	maxPageSize     = 100

	dashboardListLimit = 5
)

// AuctionService implements the catalogue use cases. Bidding state is never
// mutated here; that belongs to the Ledger.
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	publisher   outbound.Broadcaster
	logger      zerolog.Logger
}

type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	Publisher   outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		publisher:   params.Publisher,
		logger:      params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// CreateAuction validates the listing and stores a new active auction
func (service *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest, now time.Time) (*auction.Auction, error) {
	service.logger.Info().
		Str("owner_id", req.OwnerID.String()).
		Str("title", req.Title).
		Str("starting_price", req.StartingPrice.String()).
		Time("end_time", req.EndTime).
		Msg("Attempting to create auction")

	if req.OwnerID == uuid.Nil {
		return nil, shared.ErrOwnerRequired
	}

	listing := shared.Listing{
		Title:       req.Title,
		Description: req.Description,
		ImageRef:    req.ImageRef,
	}.Normalize()
	if err := listing.Validate(); err != nil {
		service.logger.Warn().Err(err).Str("owner_id", req.OwnerID.String()).Msg("Invalid listing")
		return nil, err
	}

	if req.StartingPrice.IsNegative() || !shared.AmountFitsScale(req.StartingPrice) {
		service.logger.Warn().Str("starting_price", req.StartingPrice.String()).Msg("Invalid starting price")
		return nil, shared.ErrInvalidStartingPrice
	}

	if !req.EndTime.After(now) {
		service.logger.Warn().
			Time("end_time", req.EndTime).
			Time("current_time", now).
			Msg("End time must be in the future")
		return nil, shared.ErrInvalidEndTime
	}

	created := auction.New(req.OwnerID, listing, req.StartingPrice, req.EndTime.UTC(), now)

	if err := service.auctionRepo.Create(ctx, created); err != nil {
		service.logger.Error().Err(err).Str("auction_id", created.ID.String()).Msg("Failed to save auction")
		return nil, persistenceError(err)
	}

	service.logger.Info().
		Str("auction_id", created.ID.String()).
		Time("end_time", created.EndTime).
		Msg("Auction created successfully")

	if service.publisher != nil {
		if err := service.publisher.Publish(ctx, created.ID, auctionCreatedEvent(created)); err != nil {
			service.logger.Error().Err(err).Str("auction_id", created.ID.String()).Msg("Failed to publish auction created event")
		}
	}

	return created, nil
}

// GetAuction retrieves an auction by ID
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	service.logger.Debug().Str("auction_id", auctionID.String()).Msg("Retrieving auction")

	found, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) {
			return nil, shared.ErrAuctionNotFound
		}
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to retrieve auction")
		return nil, persistenceError(err)
	}

	return found, nil
}

// ListAuctions retrieves a page of auctions
func (service *AuctionService) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*auction.Auction, error) {
	if req.Page <= 0 {
		req.Page = defaultPage
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, shared.ErrInvalidRequest
	}
	if req.Now.IsZero() {
		req.Now = time.Now().UTC()
	}

	auctions, err := service.auctionRepo.List(ctx, req.Status, req.Now, req.Page, req.PageSize)
	if err != nil {
		service.logger.Error().Err(err).Int("page", req.Page).Msg("Failed to list auctions")
		return nil, persistenceError(err)
	}

	return auctions, nil
}

// BidsByBidder returns a user's bid history derived from the auctions they bid on
func (service *AuctionService) BidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]bid.Bid, error) {
	if bidderID == uuid.Nil {
		return nil, shared.ErrUserIDRequired
	}

	bids, err := service.auctionRepo.ListBidsByBidder(ctx, bidderID)
	if err != nil {
		service.logger.Error().Err(err).Str("bidder_id", bidderID.String()).Msg("Failed to list bids")
		return nil, persistenceError(err)
	}

	return bids, nil
}

// DeleteAuction removes an auction and its bids
func (service *AuctionService) DeleteAuction(ctx context.Context, auctionID uuid.UUID) error {
	if err := service.auctionRepo.Delete(ctx, auctionID); err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) {
			return shared.ErrAuctionNotFound
		}
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to delete auction")
		return persistenceError(err)
	}

	service.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction deleted")
	return nil
}

// Dashboard gathers catalogue counts, the newest auctions and the top bidders
func (service *AuctionService) Dashboard(ctx context.Context, now time.Time) (*auction.Stats, error) {
	stats, err := service.auctionRepo.Stats(ctx, now, dashboardListLimit)
	if err != nil {
		service.logger.Error().Err(err).Msg("Failed to aggregate dashboard stats")
		return nil, persistenceError(err)
	}

	service.logger.Debug().
		Int("total_auctions", stats.TotalAuctions).
		Int("active_auctions", stats.ActiveAuctions).
		Int("total_bids", stats.TotalBids).
		Msg("Dashboard stats aggregated")

	return stats, nil
}
