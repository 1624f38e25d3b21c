package boltstore

import (
	"fmt"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// auctionDoc is the stored form of an auction. Amounts are kept as decimal
// strings so no precision is lost in the encoding.
type auctionDoc struct {
	ID            uuid.UUID  `cbor:"1,keyasint"`
	Title         string     `cbor:"2,keyasint"`
	Description   string     `cbor:"3,keyasint"`
	ImageRef      string     `cbor:"4,keyasint"`
	OwnerID       uuid.UUID  `cbor:"5,keyasint"`
	StartingPrice string     `cbor:"6,keyasint"`
	CurrentPrice  string     `cbor:"7,keyasint"`
	EndTime       time.Time  `cbor:"8,keyasint"`
	Status        string     `cbor:"9,keyasint"`
	WinnerID      *uuid.UUID `cbor:"10,keyasint,omitempty"`
	Bids          []bidDoc   `cbor:"11,keyasint"`
	Version       int64      `cbor:"12,keyasint"`
	CreatedAt     time.Time  `cbor:"13,keyasint"`
	UpdatedAt     time.Time  `cbor:"14,keyasint"`
}

type bidDoc struct {
	ID        uuid.UUID `cbor:"1,keyasint"`
	BidderID  uuid.UUID `cbor:"2,keyasint"`
	Amount    string    `cbor:"3,keyasint"`
	Timestamp time.Time `cbor:"4,keyasint"`
}

func (s *Store) encode(a *auction.Auction) ([]byte, error) {
	doc := auctionDoc{
		ID:            a.ID,
		Title:         a.Listing.Title,
		Description:   a.Listing.Description,
		ImageRef:      a.Listing.ImageRef,
		OwnerID:       a.OwnerID,
		StartingPrice: a.StartingPrice.String(),
		CurrentPrice:  a.CurrentPrice.String(),
		EndTime:       a.EndTime.UTC(),
		Status:        string(a.Status),
		WinnerID:      a.WinnerID,
		Bids:          make([]bidDoc, 0, len(a.Bids)),
		Version:       a.Version,
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}
	for _, b := range a.Bids {
		doc.Bids = append(doc.Bids, bidDoc{
			ID:        b.ID,
			BidderID:  b.BidderID,
			Amount:    b.Amount.String(),
			Timestamp: b.Timestamp.UTC(),
		})
	}

	data, err := s.enc.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auction: %w", err)
	}
	return data, nil
}

func (s *Store) decode(data []byte) (*auction.Auction, error) {
	var doc auctionDoc
	if err := s.dec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode auction: %w", err)
	}

	startingPrice, err := decimal.NewFromString(doc.StartingPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to decode starting price: %w", err)
	}
	currentPrice, err := decimal.NewFromString(doc.CurrentPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to decode current price: %w", err)
	}

	a := &auction.Auction{
		ID: doc.ID,
		Listing: shared.Listing{
			Title:       doc.Title,
			Description: doc.Description,
			ImageRef:    doc.ImageRef,
		},
		OwnerID:       doc.OwnerID,
		StartingPrice: startingPrice,
		CurrentPrice:  currentPrice,
		EndTime:       doc.EndTime.UTC(),
		Status:        auction.Status(doc.Status),
		WinnerID:      doc.WinnerID,
		Bids:          make([]bid.Bid, 0, len(doc.Bids)),
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}
	for _, b := range doc.Bids {
		amount, err := decimal.NewFromString(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to decode bid amount: %w", err)
		}
		a.Bids = append(a.Bids, bid.Bid{
			ID:        b.ID,
			AuctionID: doc.ID,
			BidderID:  b.BidderID,
			Amount:    amount,
			Timestamp: b.Timestamp.UTC(),
		})
	}

	return a, nil
}
