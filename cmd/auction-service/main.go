package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"auction-ledger-service/internal/adapters/boltstore"
	"auction-ledger-service/internal/adapters/broadcaster"
	"auction-ledger-service/internal/adapters/db"
	"auction-ledger-service/internal/adapters/httpapi"
	"auction-ledger-service/internal/adapters/memory"
	"auction-ledger-service/internal/adapters/redis"
	"auction-ledger-service/internal/adapters/scheduler"
	"auction-ledger-service/internal/adapters/ws"
	"auction-ledger-service/internal/app"
	"auction-ledger-service/internal/config"
	"auction-ledger-service/internal/ports/outbound"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Auction Ledger Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auctionRepo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open auction store")
	}
	defer closeStore.Close()
	log.Info().Str("driver", cfg.Store.Driver).Msg("Auction store initialized")

	eventBroadcaster, closeBroadcaster, err := openBroadcaster(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("broadcaster", cfg.Broadcaster.Kind).Msg("Failed to initialize broadcaster")
	}
	defer closeBroadcaster.Close()
	log.Info().Str("broadcaster", cfg.Broadcaster.Kind).Msg("Broadcaster initialized")

	publisher := app.NewAsyncPublisher(app.AsyncPublisherParams{
		Broadcaster: eventBroadcaster,
		Workers:     cfg.Broadcaster.Workers,
		QueueSize:   cfg.Broadcaster.QueueSize,
		Timeout:     cfg.Ledger.OpTimeout,
		Logger:      log.Logger,
	})

	// Create business services
	ledger := app.NewLedger(app.LedgerParams{
		AuctionRepo:     auctionRepo,
		Publisher:       publisher,
		OpTimeout:       cfg.Ledger.OpTimeout,
		ConflictRetries: cfg.Ledger.ConflictRetries,
		Logger:          log.Logger,
	})
	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionRepo,
		Publisher:   publisher,
		Logger:      log.Logger,
	})

	log.Info().Msg("Business services initialized")

	sweeper := scheduler.NewAuctionSweeper(scheduler.AuctionSweeperParams{
		AuctionRepo: auctionRepo,
		Ledger:      ledger,
		Interval:    cfg.Sweeper.Interval,
		BatchSize:   cfg.Sweeper.BatchSize,
		Workers:     cfg.Sweeper.Workers,
		Logger:      log.Logger,
	})
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start auction sweeper")
	}
	log.Info().Dur("interval", cfg.Sweeper.Interval).Msg("Auction sweeper started")

	wsHandler := ws.NewHandler(ws.WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		},
		AuctionService: auctionService,
		Ledger:         ledger,
		Broadcaster:    publisher,
		Logger:         log.Logger,
	})

	router := httpapi.NewRouter(httpapi.RouterParams{
		Handler: httpapi.NewHandler(httpapi.HandlerParams{
			AuctionService: auctionService,
			Ledger:         ledger,
			Logger:         log.Logger,
		}),
		WebSocket: wsHandler.HandleWebSocket,
		Logger:    log.Logger,
	})

	httpServer := httpapi.NewServer(httpapi.ServerParams{
		Addr:    cfg.GetServerAddress(),
		Handler: router,
		Logger:  log.Logger,
	})

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start HTTP server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	}
	wsHandler.CloseAll()

	sweeper.Stop(shutdownCtx)
	log.Info().Msg("Auction sweeper stopped")

	// drain queued notifications before the transport goes away
	publisher.Stop()

	log.Info().Msg("Graceful shutdown completed")
}

// openStore selects the persistence backend named by the configuration
func openStore(ctx context.Context, cfg *config.Config) (outbound.AuctionRepository, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres, config.DriverMySQL:
		dialect, err := db.ParseDialect(cfg.Store.Driver)
		if err != nil {
			return nil, nil, err
		}

		conn, err := db.NewConnection(ctx, db.ConnectionParams{
			Dialect:      dialect,
			URL:          cfg.Database.GetConnectionString(),
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			Logger:       log.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := conn.Migrate(ctx); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return db.NewAuctionRepository(conn), conn, nil

	case config.DriverBolt:
		store, err := boltstore.New(cfg.Store.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case config.DriverMemory:
		return memory.NewAuctionStore(), nopCloser, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openBroadcaster selects the notification transport named by the configuration
func openBroadcaster(ctx context.Context, cfg *config.Config) (outbound.Broadcaster, io.Closer, error) {
	switch cfg.Broadcaster.Kind {
	case config.BroadcasterRedis:
		redisClient, err := redis.Connect(ctx, cfg.Redis, log.Logger)
		if err != nil {
			return nil, nil, err
		}

		redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
			RedisClient: redisClient,
			Logger:      log.Logger,
		})
		return redisBroadcaster, redisBroadcaster, nil

	case config.BroadcasterMemory:
		return memory.NewBroadcaster(memory.BroadcasterParams{Logger: log.Logger}), nopCloser, nil

	default:
		return nil, nil, fmt.Errorf("unknown broadcaster %q", cfg.Broadcaster.Kind)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
