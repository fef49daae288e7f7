package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"auctionhouse/internal/closing"
	"auctionhouse/internal/config"
	"auctionhouse/internal/database/db_client"
	"auctionhouse/internal/database/repository"
	"auctionhouse/internal/http/http_server"
	"auctionhouse/internal/notifier"
	"auctionhouse/internal/outbox"
	"auctionhouse/internal/redis/ledger"
	"auctionhouse/internal/redis/redis_client"
	"auctionhouse/internal/redis/redis_functions"
	"auctionhouse/internal/redis/watcher/auctionwatcher"
	"auctionhouse/internal/services/auction"
	"auctionhouse/internal/syncbid"
	"auctionhouse/internal/syncdb"
	"auctionhouse/internal/ws"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

//go:generate swag init --parseInternal -g main.go -o api_specs

//	@title			Auction House API
//	@version		1.0
//	@description	Live auctions with anti-sniping, a closing job and seller approval.
//	@BasePath		/
func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	opts, err := cfg.AuctionOptions()
	if err != nil {
		Log.Fatal("Invalid auction settings", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	clock := clockwork.NewRealClock()

	// 3. Postgres db client + schema
	pgDb, err := db_client.Open(db_client.Options{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Database: cfg.PostgresDb,
		SSLMode:  cfg.PostgresSSLMode,
		MaxConns: cfg.PostgresMaxConns,
	})
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if err := db_client.Migrate(pgDb); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}
	auctionRepo := repository.NewAuctionRepository(pgDb)
	outboxRepo := repository.NewOutboxRepository(pgDb)

	// 4. Ledger and live fan-out: Redis, or in-process for single instance runs
	hub := ws.NewHub()
	var bidLedger auction.Ledger
	var live auction.LivePublisher
	switch cfg.LedgerBackend {
	case "memory":
		bidLedger = auction.NewMemoryLedger()
		live = ws.NewHubPublisher(hub)
		Log.Warn("Using the in-memory ledger; live state does not survive restarts")
	default:
		redisClient, err = redis_client.NewRedisClient(redis_client.Options{
			Host:     cfg.RedisAuctionsHost,
			Port:     int(cfg.RedisAuctionsPort),
			Password: cfg.RedisAuctionsPass,
			DB:       cfg.RedisAuctionsDb,
		})
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		Log.Debug("Redis client created successfully")

		// Load the Redis Functions lua
		if err := redis_functions.LoadAll(ctx, redisClient, ledger.Functions...); err != nil {
			Log.Fatal("load-redis-funcs", zap.Error(err))
		}
		bidLedger = ledger.New(redisClient)
		live = ws.NewRedisPublisher(redisClient)
	}

	// 5. Notifier gateway
	var notify notifier.Notifier = notifier.LogNotifier{}
	if cfg.NatsURL != "" {
		js, err := notifier.NewJetStreamNotifier(ctx, notifier.DefaultJetStreamConfig(cfg.NatsURL))
		if err != nil {
			Log.Fatal("nats-connect", zap.Error(err))
		}
		defer js.Close()
		notify = js
	} else {
		Log.Warn("NATS_URL not set; notifications are only logged")
	}

	// 6. Services and the closing job
	auctionService := auction.NewAuctionService(bidLedger, auctionRepo, live, notify, clock, opts)

	closeCfg := closing.DefaultConfig()
	closeCfg.Workers = cfg.CloseWorkers
	closeCfg.SweepInterval = cfg.CloseSweepInterval
	scheduler := closing.NewScheduler(auctionService, clock, closeCfg)
	auctionService.SetDeadlineWatcher(scheduler)

	if _, err := auctionService.RestoreLive(ctx); err != nil {
		Log.Fatal("restore-live", zap.Error(err))
	}
	go func() { _ = scheduler.Run(ctx) }()

	// 7. Background: key‑expiry watcher, live mirror, bid stream persistence
	if redisClient != nil {
		go auctionwatcher.Run(ctx, redisClient, scheduler)
		syncbid.Run(ctx, redisClient, auctionRepo)
	}
	syncdb.Run(ctx, bidLedger, auctionRepo, cfg.LiveSyncInterval)

	// 8. Outbox relay for closing and approval notifications
	outCfg := outbox.DefaultConfig()
	outCfg.PollInterval = cfg.OutboxPollInterval
	outCfg.BatchSize = cfg.OutboxBatchSize
	relay := outbox.NewWorker(outboxRepo, notify, clock, outCfg)
	if err := relay.Start(ctx); err != nil {
		Log.Fatal("outbox-start", zap.Error(err))
	}
	defer func() { _ = relay.Stop() }()

	// 9. HTTP + WS server
	wsSrv := ws.NewWsServer(hub, redisClient, auctionService)
	defer wsSrv.Close()
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, auctionService)
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Error("Failed to start HTTP server", zap.Error(err))
	}
	Log.Info("shutting down")
}
