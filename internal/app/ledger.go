package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultOpTimeout       = 5 * time.Second
	defaultConflictRetries = 3
)

// Ledger is the single authority for mutating an auction's bidding state.
// Every read-modify-write on one auction runs under that auction's lock and
// the store's version check.
type Ledger struct {
	auctionRepo     outbound.AuctionRepository
	publisher       outbound.Broadcaster
	locks           *keyedMutex
	opTimeout       time.Duration
	conflictRetries int
	logger          zerolog.Logger
}

type LedgerParams struct {
	AuctionRepo     outbound.AuctionRepository
	Publisher       outbound.Broadcaster
	OpTimeout       time.Duration
	ConflictRetries int
	Logger          zerolog.Logger
}

// NewLedger creates a new auction ledger
func NewLedger(params LedgerParams) *Ledger {
	opTimeout := params.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	retries := params.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}

	return &Ledger{
		auctionRepo:     params.AuctionRepo,
		publisher:       params.Publisher,
		locks:           newKeyedMutex(),
		opTimeout:       opTimeout,
		conflictRetries: retries,
		logger:          params.Logger.With().Str("component", "ledger").Logger(),
	}
}

// PlaceBid validates a bid against the auction's current state and records it
func (ledger *Ledger) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*inbound.PlaceBidResult, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ledger.logger.Debug().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Str("amount", req.Amount.String()).
		Msg("Attempting to place bid")

	if !shared.AmountFitsScale(req.Amount) {
		ledger.logger.Warn().
			Str("auction_id", req.AuctionID.String()).
			Str("amount", req.Amount.String()).
			Msg("Bid amount has too many decimal places")
		return nil, shared.ErrInvalidAmount
	}

	ctx, cancel := ledger.operationContext(ctx)
	defer cancel()

	unlock := ledger.locks.Lock(req.AuctionID)
	defer unlock()

	var (
		placed       bid.Bid
		currentPrice decimal.Decimal
	)
	updated, err := ledger.mutate(ctx, req.AuctionID, func(a *auction.Auction) (bool, error) {
		b, err := a.PlaceBid(req.BidderID, req.Amount, now)
		if err != nil {
			return false, err
		}
		placed = b
		currentPrice = a.CurrentPrice
		return true, nil
	})
	if err != nil {
		ledger.logRejection(err, req.AuctionID).
			Str("bidder_id", req.BidderID.String()).
			Str("amount", req.Amount.String()).
			Msg("Bid rejected")
		return nil, err
	}

	ledger.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bid_id", placed.ID.String()).
		Str("bidder_id", placed.BidderID.String()).
		Str("amount", placed.Amount.String()).
		Int64("version", updated.Version).
		Msg("Bid accepted")

	ledger.publish(ctx, bidPlacedEvent(placed, currentPrice))

	return &inbound.PlaceBidResult{
		Bid:          placed,
		CurrentPrice: currentPrice,
	}, nil
}

// Close ends an auction and fixes its winner. A close on an auction that is
// no longer active returns its current state with Changed set to false.
func (ledger *Ledger) Close(ctx context.Context, auctionID uuid.UUID, now time.Time, trigger auction.CloseTrigger) (*shared.AuctionEndResult, error) {
	ledger.logger.Debug().
		Str("auction_id", auctionID.String()).
		Str("trigger", string(trigger)).
		Msg("Closing auction")

	ctx, cancel := ledger.operationContext(ctx)
	defer cancel()

	unlock := ledger.locks.Lock(auctionID)
	defer unlock()

	var changed bool
	updated, err := ledger.mutate(ctx, auctionID, func(a *auction.Auction) (bool, error) {
		var err error
		changed, err = a.Close(now, trigger)
		return changed, err
	})
	if err != nil {
		ledger.logRejection(err, auctionID).
			Str("trigger", string(trigger)).
			Msg("Close failed")
		return nil, err
	}

	result := updated.EndResult(changed)
	if !changed {
		ledger.logger.Debug().
			Str("auction_id", auctionID.String()).
			Str("status", result.Status).
			Msg("Auction already closed")
		return result, nil
	}

	logEvent := ledger.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("trigger", string(trigger)).
		Str("final_price", result.FinalPrice.String())
	if result.WinnerID != nil {
		logEvent = logEvent.Str("winner_id", result.WinnerID.String())
	}
	logEvent.Msg("Auction ended")

	ledger.publish(ctx, auctionEndedEvent(result, trigger))

	return result, nil
}

// Cancel withdraws an active auction. Cancelling an auction that is no
// longer active is a no-op.
func (ledger *Ledger) Cancel(ctx context.Context, auctionID uuid.UUID, now time.Time) (*shared.AuctionEndResult, error) {
	ctx, cancel := ledger.operationContext(ctx)
	defer cancel()

	unlock := ledger.locks.Lock(auctionID)
	defer unlock()

	var changed bool
	updated, err := ledger.mutate(ctx, auctionID, func(a *auction.Auction) (bool, error) {
		changed = a.Cancel(now)
		return changed, nil
	})
	if err != nil {
		ledger.logRejection(err, auctionID).Msg("Cancel failed")
		return nil, err
	}

	result := updated.EndResult(changed)
	if changed {
		ledger.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction cancelled")
		ledger.publish(ctx, auctionCancelledEvent(result))
	}

	return result, nil
}

// UpdateListing merges the patch into the auction's listing on behalf of its
// owner. The merge runs on the freshly loaded state so concurrent edits and
// bids are never lost.
func (ledger *Ledger) UpdateListing(ctx context.Context, req inbound.UpdateListingRequest) (*auction.Auction, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ctx, cancel := ledger.operationContext(ctx)
	defer cancel()

	unlock := ledger.locks.Lock(req.AuctionID)
	defer unlock()

	updated, err := ledger.mutate(ctx, req.AuctionID, func(a *auction.Auction) (bool, error) {
		if err := a.UpdateListing(req.EditorID, req.Patch.Apply(a.Listing), now); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		ledger.logRejection(err, req.AuctionID).
			Str("editor_id", req.EditorID.String()).
			Msg("Listing update rejected")
		return nil, err
	}

	ledger.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("title", updated.Listing.Title).
		Int64("version", updated.Version).
		Msg("Listing updated")

	ledger.publish(ctx, auctionUpdatedEvent(updated))

	return updated, nil
}

// mutate loads the auction, applies fn and saves the result when fn reports a
// change. A version conflict re-runs the whole cycle on fresh state.
func (ledger *Ledger) mutate(ctx context.Context, auctionID uuid.UUID, fn func(a *auction.Auction) (bool, error)) (*auction.Auction, error) {
	for attempt := 0; attempt <= ledger.conflictRetries; attempt++ {
		current, err := ledger.auctionRepo.GetByID(ctx, auctionID)
		if err != nil {
			if errors.Is(err, shared.ErrAuctionNotFound) {
				return nil, shared.ErrAuctionNotFound
			}
			return nil, persistenceError(err)
		}

		changed, err := fn(current)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current, nil
		}

		err = ledger.auctionRepo.Save(ctx, current)
		switch {
		case err == nil:
			return current, nil
		case errors.Is(err, shared.ErrConflict):
			ledger.logger.Warn().
				Str("auction_id", auctionID.String()).
				Int("attempt", attempt+1).
				Msg("Version conflict, retrying")
			continue
		case errors.Is(err, shared.ErrAuctionNotFound):
			return nil, shared.ErrAuctionNotFound
		default:
			return nil, persistenceError(err)
		}
	}

	return nil, persistenceError(fmt.Errorf("gave up after %d attempts: %w", ledger.conflictRetries+1, shared.ErrConflict))
}

// operationContext detaches the operation from the caller's cancellation so
// it always reaches a terminal outcome, bounded by the operation timeout.
func (ledger *Ledger) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ledger.opTimeout)
}

func (ledger *Ledger) publish(ctx context.Context, event outbound.Event) {
	if ledger.publisher == nil {
		return
	}
	if err := ledger.publisher.Publish(ctx, event.AuctionID, event); err != nil {
		ledger.logger.Error().
			Err(err).
			Str("auction_id", event.AuctionID.String()).
			Str("event_type", string(event.Type)).
			Msg("Failed to publish event")
	}
}

// logRejection logs caller errors at warn and infrastructure errors at error
func (ledger *Ledger) logRejection(err error, auctionID uuid.UUID) *zerolog.Event {
	logEvent := ledger.logger.Warn()
	if !shared.IsDomainError(err) {
		logEvent = ledger.logger.Error()
	}
	return logEvent.Err(err).Str("auction_id", auctionID.String())
}

func persistenceError(err error) error {
	if errors.Is(err, shared.ErrPersistenceFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrPersistenceFailure, err)
}
