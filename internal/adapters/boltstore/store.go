// Package boltstore provides an embedded, single-file AuctionRepository backed by
// BoltDB. Each auction is one CBOR document keyed by its id, so a bid and the
// version bump it causes are written in the same transaction.
package boltstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"

	bolt "github.com/boltdb/bolt"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const bucketName = "auctions"

// Store wraps a BoltDB database holding auction documents
type Store struct {
	db  *bolt.DB
	enc cbor.EncMode
	dec cbor.DecMode
}

// New opens (or creates) a BoltDB database at the given path and ensures the
// auctions bucket exists.
func New(path string) (*Store, error) {
	enc, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor decoder: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db, enc: enc, dec: dec}, nil
}

// Close releases the database file lock
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, a *auction.Auction) error {
	a.Version = 0
	data, err := s.encode(a)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get(a.ID[:]) != nil {
			return fmt.Errorf("auction %s already exists", a.ID)
		}
		return b.Put(a.ID[:], data)
	})
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	var found *auction.Auction

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get(id[:])
		if v == nil {
			return shared.ErrAuctionNotFound
		}
		var err error
		found, err = s.decode(v)
		return err
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// Save checks the stored version and writes the document in one transaction
func (s *Store) Save(ctx context.Context, a *auction.Auction) error {
	next := a.Clone()
	next.Version = a.Version + 1
	data, err := s.encode(next)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get(a.ID[:])
		if v == nil {
			return shared.ErrAuctionNotFound
		}

		stored, err := s.decode(v)
		if err != nil {
			return err
		}
		if stored.Version != a.Version {
			return shared.ErrConflict
		}

		return b.Put(a.ID[:], data)
	})
	if err != nil {
		return err
	}

	a.Version = next.Version
	return nil
}

func (s *Store) QueryExpiredActive(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var expired []*auction.Auction

	err := s.forEach(func(a *auction.Auction) {
		if a.Status == auction.StatusActive && !a.EndTime.After(now) {
			expired = append(expired, a)
		}
	})
	if err != nil {
		return nil, err
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

func (s *Store) List(ctx context.Context, status *auction.Status, now time.Time, page, pageSize int) ([]*auction.Auction, error) {
	var matched []*auction.Auction

	err := s.forEach(func(a *auction.Auction) {
		if auction.MatchesStatus(a, status, now) {
			matched = append(matched, a)
		}
	})
	if err != nil {
		return nil, err
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
	return matched[offset:end], nil
}

func (s *Store) ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]bid.Bid, error) {
	bids := []bid.Bid{}

	err := s.forEach(func(a *auction.Auction) {
		for _, b := range a.Bids {
			if b.BidderID == bidderID {
				bids = append(bids, b)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(bids, func(i, j int) bool {
		return bids[i].Timestamp.After(bids[j].Timestamp)
	})
	return bids, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get(id[:]) == nil {
			return shared.ErrAuctionNotFound
		}
		return b.Delete(id[:])
	})
}

func (s *Store) Stats(ctx context.Context, now time.Time, limit int) (*auction.Stats, error) {
	tally := auction.NewStatsTally(now, limit)
	if err := s.forEach(tally.Add); err != nil {
		return nil, err
	}
	return tally.Stats(), nil
}

func (s *Store) forEach(fn func(a *auction.Auction)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			a, err := s.decode(v)
			if err != nil {
				return err
			}
			fn(a)
			return nil
		})
	})
}
