package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/broadcast"
	"auction-house/internal/clock"
	"auction-house/internal/config"
	"auction-house/internal/identity"
	"auction-house/internal/repository"
	"auction-house/internal/repository/postgres"
	"auction-house/internal/server"
	"auction-house/internal/sweeper"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	flags := config.BindFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(flags, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := utils.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set log level: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.Fatal("auction server stopped with error", map[string]any{"error": err.Error()})
	}
}

// storage bundles the stores one database driver provides
type storage struct {
	auctions repository.AuctionDB
	catalog  repository.Catalog
	users    repository.UserDirectory
	close    func() error
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			utils.Warn("failed to close storage", map[string]any{"error": err.Error()})
		}
	}()

	clk := clock.Real()
	hub := broadcast.NewBroadcaster()
	biddingSvc := bidding.NewBiddingService(store.auctions, store.catalog, store.users, hub, clk)

	sw := sweeper.New(store.auctions, store.users, hub, clk, sweeper.Options{
		Interval:  cfg.Sweeper.Interval,
		BatchSize: cfg.Sweeper.BatchSize,
	})
	if err := sw.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sw.Stop()

	router := server.SetupRouter(server.RouterOptions{
		Service:      biddingSvc,
		Hub:          hub,
		Identity:     identity.NewHeaderProvider(),
		StreamBuffer: cfg.Broadcast.BufferSize,
	})

	// Request contexts derive from baseCtx so open event streams end on shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	serveErr := make(chan error, 1)
	go func() {
		utils.Info("starting auction server", map[string]any{
			"addr":           cfg.Server.Addr,
			"driver":         cfg.Database.Driver,
			"sweep_interval": cfg.Sweeper.Interval.String(),
		})
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	utils.Info("shutting down auction server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return storage{}, err
		}
		if cfg.Database.Migrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return storage{}, err
			}
		}
		if cfg.Seed {
			if err := seedPostgres(ctx, store); err != nil {
				_ = store.Close()
				return storage{}, err
			}
		}
		return storage{auctions: store, catalog: store, users: store, close: store.Close}, nil

	default:
		repo := repository.NewMemoryRepo()
		if cfg.Seed {
			seedMemory(repo)
		}
		return storage{auctions: repo, catalog: repo, users: repo, close: func() error { return nil }}, nil
	}
}
