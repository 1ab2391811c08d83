package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sglre6355/discofleet/internal/config"
	"github.com/sglre6355/discofleet/internal/fleet"
	"github.com/sglre6355/discofleet/internal/lavalink"
	"github.com/sglre6355/discofleet/internal/state"
)

// version is set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0" ./cmd/discofleet
var version = "dev"

func main() {
	// Configure JSON logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	slog.Info("starting discofleet", "version", version)

	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	accounts, err := config.Load(cfg.AccountsPath)
	if err != nil {
		slog.Error("failed to load account file", "path", cfg.AccountsPath, "error", err)
		os.Exit(1)
	}

	store := state.NewStore()
	accounts.Hydrate(store)

	dialer := lavalink.NewDialer(lavalink.Config{
		Address:  cfg.LavalinkAddress,
		Password: cfg.LavalinkPassword,
		Secure:   cfg.LavalinkSecure,
	})

	// The request channel is the presentation layer's lifecycle
	// surface; the supervisor is its single consumer.
	requests := make(chan fleet.Request, 32)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supervisor := fleet.NewSupervisor(store, dialer, requests)
	go supervisor.Run(ctx)

	// Auto-start flagged accounts through the same request queue the
	// presentation layer uses.
	var autoStart []string
	store.View(func(accounts map[string]*state.Account, _ []string) {
		for id, a := range accounts {
			if a.AutoStart {
				autoStart = append(autoStart, id)
			}
		}
	})
	for _, id := range autoStart {
		requests <- fleet.Request{Kind: fleet.RequestStart, AccountID: id}
	}
	slog.Info("supervisor running", "accounts", len(autoStart))

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("received termination signal, shutting down")

	var running []string
	store.View(func(accounts map[string]*state.Account, _ []string) {
		for id, a := range accounts {
			if a.Commands != nil {
				running = append(running, id)
			}
		}
	})
	for _, id := range running {
		requests <- fleet.Request{Kind: fleet.RequestStop, AccountID: id}
	}

	if err := config.FromStore(store).Save(cfg.AccountsPath); err != nil {
		slog.Error("failed to save account file", "error", err)
	}

	slog.Info("completed shutdown")
}
