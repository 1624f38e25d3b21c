package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	defaultSweepInterval  = time.Minute
	defaultSweepBatchSize = 100
	defaultSweepWorkers   = 4
)

// AuctionSweeper periodically closes auctions whose end time has passed.
// It never decides a winner itself; every close goes through the ledger.
type AuctionSweeper struct {
	auctionRepo outbound.AuctionRepository
	ledger      inbound.LedgerService
	interval    time.Duration
	batchSize   int
	pool        *pond.WorkerPool
	cron        *cron.Cron
	now         func() time.Time
	logger      zerolog.Logger

	// guards pool submissions against the pool being stopped
	mu      sync.Mutex
	stopped bool
}

type AuctionSweeperParams struct {
	AuctionRepo outbound.AuctionRepository
	Ledger      inbound.LedgerService
	Interval    time.Duration
	BatchSize   int
	Workers     int
	Logger      zerolog.Logger
}

func NewAuctionSweeper(params AuctionSweeperParams) *AuctionSweeper {
	interval := params.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	workers := params.Workers
	if workers <= 0 {
		workers = defaultSweepWorkers
	}

	logger := params.Logger.With().Str("component", "auction_sweeper").Logger()
	cl := cronLogger{logger: logger}

	return &AuctionSweeper{
		auctionRepo: params.AuctionRepo,
		ledger:      params.Ledger,
		interval:    interval,
		batchSize:   batchSize,
		pool:        pond.New(workers, batchSize),
		cron: cron.New(
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Start runs a sweep immediately and then schedules one every interval
func (s *AuctionSweeper) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Int("batch_size", s.batchSize).Msg("Starting auction sweeper")

	if _, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		s.SweepOnce(ctx, s.now())
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.SweepOnce(ctx, s.now())
	s.cron.Start()
	return nil
}

// Stop stops scheduling new sweeps and waits for a running one to finish
func (s *AuctionSweeper) Stop(ctx context.Context) {
	s.logger.Info().Msg("Stopping auction sweeper")

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("Timed out waiting for running sweep")
	}

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.pool.StopAndWait()
}

// SweepOnce closes every expired active auction in one batch. Failures are
// logged and left for the next run.
func (s *AuctionSweeper) SweepOnce(ctx context.Context, now time.Time) (closed int, failed int) {
	if s.isStopped() {
		return 0, 0
	}

	ids, err := s.auctionRepo.QueryExpiredActive(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query expired auctions")
		return 0, 0
	}
	if len(ids) == 0 {
		return 0, 0
	}

	s.logger.Debug().Int("count", len(ids)).Msg("Found expired auctions")

	var closedCount, failedCount atomic.Int64
	group := s.pool.Group()
	for i, id := range ids {
		auctionID := id
		submitted := s.submit(group, func() {
			switch ended, err := s.closeAuction(ctx, auctionID, now); {
			case err != nil:
				failedCount.Add(1)
			case ended:
				closedCount.Add(1)
			}
		})
		if !submitted {
			s.logger.Warn().Int("skipped", len(ids)-i).Msg("Sweeper stopped, leaving auctions for the next run")
			break
		}
	}
	group.Wait()

	closed, failed = int(closedCount.Load()), int(failedCount.Load())
	s.logger.Info().Int("closed", closed).Int("failed", failed).Msg("Sweep finished")
	return closed, failed
}

// submit hands task to the pool unless Stop has begun. A stopped pond pool
// panics on Submit.
func (s *AuctionSweeper) submit(group *pond.TaskGroup, task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	group.Submit(task)
	return true
}

func (s *AuctionSweeper) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *AuctionSweeper) closeAuction(ctx context.Context, auctionID uuid.UUID, now time.Time) (bool, error) {
	result, err := s.ledger.Close(ctx, auctionID, now, auction.TriggerExpiry)
	if err != nil {
		// the auction was deleted or extended between the query and the close
		if errors.Is(err, shared.ErrAuctionNotFound) || errors.Is(err, shared.ErrAuctionNotExpired) {
			s.logger.Debug().Err(err).Str("auction_id", auctionID.String()).Msg("Skipping auction")
			return false, nil
		}
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to close expired auction")
		return false, err
	}

	return result.Changed, nil
}
