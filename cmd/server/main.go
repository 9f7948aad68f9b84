package main // Entry point package

import (
	"context" // Context for startup deadlines
	"log"     // Logging library
	"time"    // Timeouts for startup work

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/elysium/points-auction/internal/config"     // Internal config loader
	"github.com/elysium/points-auction/internal/database"   // MySQL connection pool
	"github.com/elysium/points-auction/internal/engine"     // Auction engine
	"github.com/elysium/points-auction/internal/handler"    // HTTP handlers
	"github.com/elysium/points-auction/internal/ledger"     // Points ledger client and cache
	"github.com/elysium/points-auction/internal/queue"      // Audit log consumer
	"github.com/elysium/points-auction/internal/repository" // Snapshot persistence
	"github.com/elysium/points-auction/internal/router"     // Internal router setup
	"github.com/elysium/points-auction/internal/service"    // Event publisher and cooldown
)

func main() {
	// Load a .env file when present; in production the variables come
	// from the environment and the file is simply absent.
	_ = godotenv.Load()

	cfg := config.Load()                  // Load environment config
	auctionCfg := config.LoadAuctionConfig() // Engine timing and policy knobs

	// Connect to MySQL and make sure the snapshot tables exist.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	store := repository.NewStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("database: %v", err)
	}

	// The proposal cooldown prefers Redis so replicas and restarts agree;
	// without a reachable Redis it degrades to the in-process gate.
	var cooldown engine.Cooldown
	cdCfg := config.LoadCooldownConfig()
	if rdb := config.NewRedisClient(); rdb != nil {
		cooldown = service.NewRedisCooldown(cdCfg, rdb)
	} else {
		log.Printf("redis unavailable; using in-process bid cooldown")
		cooldown = service.NewMemoryCooldown(cdCfg.Window)
	}

	// Ledger client, balance cache and event publisher.
	api := ledger.NewWebhookClient(cfg.LedgerURL)
	cache := ledger.NewCache(api)
	publisher := service.NewEventPublisher()

	eng := engine.New(auctionCfg, store, publisher, cooldown, cache, api, engine.NewStandardClock())

	// Resume whatever a previous process left behind: the queue, locked
	// points and, when one was cut off mid-run, the active session.
	if err := eng.Recover(ctx); err != nil {
		log.Fatalf("recover: %v", err)
	}

	// The audit consumer tails auction.events into logs/auction.log.  It
	// reconnects forever on its own; a broker outage never blocks bids.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance

	bids := handler.NewBidHandler(eng)
	lots := handler.NewQueueHandler(eng)
	sessions := handler.NewSessionHandler(eng)

	router.RegisterRoutes(e, sessions)                 // Health check and public status
	router.RegisterMember(e, bids, cfg.JWTSecret)      // Bid protocol (MEMBER, ADMIN)
	router.RegisterAdmin(e, lots, sessions, cfg.JWTSecret) // Queue and session control (ADMIN)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
