package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionStore is an in-process AuctionRepository. Auctions are cloned on
// the way in and out so callers never share state with the store.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*auction.Auction
}

// NewAuctionStore creates an empty store
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions: make(map[uuid.UUID]*auction.Auction),
	}
}

func (s *AuctionStore) Create(ctx context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[a.ID]; exists {
		return fmt.Errorf("auction %s already exists", a.ID)
	}

	a.Version = 0
	s.auctions[a.ID] = a.Clone()
	return nil
}

func (s *AuctionStore) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return stored.Clone(), nil
}

func (s *AuctionStore) Save(ctx context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.auctions[a.ID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if stored.Version != a.Version {
		return shared.ErrConflict
	}

	a.Version++
	s.auctions[a.ID] = a.Clone()
	return nil
}

func (s *AuctionStore) QueryExpiredActive(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*auction.Auction
	for _, a := range s.auctions {
		if a.Status == auction.StatusActive && !a.EndTime.After(now) {
			expired = append(expired, a)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].EndTime.Before(expired[j].EndTime)
	})

	ids := make([]uuid.UUID, 0, len(expired))
	for _, a := range expired {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *AuctionStore) List(ctx context.Context, status *auction.Status, now time.Time, page, pageSize int) ([]*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*auction.Auction
	for _, a := range s.auctions {
		if !auction.MatchesStatus(a, status, now) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []*auction.Auction{}, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]*auction.Auction, 0, end-offset)
	for _, a := range matched[offset:end] {
		result = append(result, a.Clone())
	}
	return result, nil
}

func (s *AuctionStore) ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := []bid.Bid{}
	for _, a := range s.auctions {
		for _, b := range a.Bids {
			if b.BidderID == bidderID {
				bids = append(bids, b)
			}
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].Timestamp.After(bids[j].Timestamp)
	})
	return bids, nil
}

func (s *AuctionStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[id]; !ok {
		return shared.ErrAuctionNotFound
	}
	delete(s.auctions, id)
	return nil
}

func (s *AuctionStore) Stats(ctx context.Context, now time.Time, limit int) (*auction.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tally := auction.NewStatsTally(now, limit)
	for _, a := range s.auctions {
		tally.Add(a)
	}
	return tally.Stats(), nil
}
