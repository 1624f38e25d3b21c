package auction

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stats summarises the catalogue for the admin dashboard
type Stats struct {
	TotalAuctions     int
	ActiveAuctions    int
	EndedAuctions     int
	CancelledAuctions int
	TotalBids         int
	RecentAuctions    []*Auction
	TopBidders        []BidderTotal
}

// BidderTotal is one bidder's activity across all auctions
type BidderTotal struct {
	BidderID    uuid.UUID
	BidCount    int
	TotalAmount decimal.Decimal
}

// StatsTally builds Stats from a full scan of a store. Active means still
// accepting bids at now, so an expired auction the sweeper has not reached yet
// counts toward the total only.
type StatsTally struct {
	now     time.Time
	limit   int
	stats   Stats
	recent  []*Auction
	bidders map[uuid.UUID]*BidderTotal
}

func NewStatsTally(now time.Time, limit int) *StatsTally {
	return &StatsTally{
		now:     now,
		limit:   limit,
		bidders: make(map[uuid.UUID]*BidderTotal),
	}
}

// Add counts one auction. The tally keeps a reference until Stats is called.
func (t *StatsTally) Add(a *Auction) {
	t.stats.TotalAuctions++
	switch {
	case a.IsActive(t.now):
		t.stats.ActiveAuctions++
	case a.Status == StatusEnded:
		t.stats.EndedAuctions++
	case a.Status == StatusCancelled:
		t.stats.CancelledAuctions++
	}

	t.stats.TotalBids += len(a.Bids)
	for _, b := range a.Bids {
		total, ok := t.bidders[b.BidderID]
		if !ok {
			total = &BidderTotal{BidderID: b.BidderID}
			t.bidders[b.BidderID] = total
		}
		total.BidCount++
		total.TotalAmount = total.TotalAmount.Add(b.Amount)
	}

	t.recent = append(t.recent, a)
}

// Stats returns the newest auctions and the biggest bidders, up to limit each
func (t *StatsTally) Stats() *Stats {
	sort.Slice(t.recent, func(i, j int) bool {
		return t.recent[i].CreatedAt.After(t.recent[j].CreatedAt)
	})
	recent := t.recent
	if len(recent) > t.limit {
		recent = recent[:t.limit]
	}

	stats := t.stats
	stats.RecentAuctions = make([]*Auction, 0, len(recent))
	for _, a := range recent {
		stats.RecentAuctions = append(stats.RecentAuctions, a.Clone())
	}

	stats.TopBidders = make([]BidderTotal, 0, len(t.bidders))
	for _, total := range t.bidders {
		stats.TopBidders = append(stats.TopBidders, *total)
	}
	sortBidderTotals(stats.TopBidders)
	if len(stats.TopBidders) > t.limit {
		stats.TopBidders = stats.TopBidders[:t.limit]
	}

	return &stats
}

// sortBidderTotals orders bidders by total amount bid, then bid count
func sortBidderTotals(totals []BidderTotal) {
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].TotalAmount.Cmp(totals[j].TotalAmount); c != 0 {
			return c > 0
		}
		if totals[i].BidCount != totals[j].BidCount {
			return totals[i].BidCount > totals[j].BidCount
		}
		return totals[i].BidderID.String() < totals[j].BidderID.String()
	})
}
