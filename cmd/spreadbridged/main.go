package main

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/tomoyukiirino/spy-credit-spread/internal/api"
	"github.com/tomoyukiirino/spy-credit-spread/internal/bridge"
	"github.com/tomoyukiirino/spy-credit-spread/internal/broadcast"
	"github.com/tomoyukiirino/spy-credit-spread/internal/config"
	"github.com/tomoyukiirino/spy-credit-spread/internal/market"
	"github.com/tomoyukiirino/spy-credit-spread/internal/store"
	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("spreadbridged: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"venue_addr", cfg.VenueAddr,
		"client_id", cfg.ClientID,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	conn := venue.NewSim(time.Now().UnixNano())
	b := bridge.New(conn, bridge.Options{
		Addr:           cfg.VenueAddr,
		ClientID:       cfg.ClientID,
		ConnectTimeout: cfg.ConnectTimeout,
	}, logger)

	// A failed or slow handshake is not fatal: the worker keeps retrying in
	// the background and the API reports the state on /v1/status.
	if err := b.Start(); err != nil {
		switch {
		case errors.Is(err, bridge.ErrConnectTimeout), errors.Is(err, bridge.ErrConnectFailed):
			logger.Warn("venue not reachable at startup", "error", err)
		default:
			log.Fatalf("failed to start bridge: %v", err)
		}
	}
	defer func() {
		if err := b.Stop(); err != nil {
			logger.Error("bridge stop", "error", err)
		}
	}()

	svc := market.NewService(b)

	broker := broadcast.NewBroker()
	defer broker.Close()

	monitor := broadcast.NewMonitor(svc, broker, db, logger, cfg.PollInterval)
	monitor.Start()
	defer monitor.Stop()

	srv := api.NewServer(cfg.ListenAddr, b, svc, broker, db, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
