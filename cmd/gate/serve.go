package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/match"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/grpcapi"
	"github.com/BrandonDHaskell/Portunus/gate/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health service and scanning stations",
		Long: `Run the gate server.

Configured stations are commissioned on startup and, with --autostart,
begin scanning immediately. Capture adapters post signals to
/v1/stations/{id}/signals.

Examples:
  gate serve --stations north,south
  GATE_DB_DRIVER=postgres GATE_DB_URL=postgres://... gate serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("http-addr", ":8080", "HTTP listen address")
	f.String("grpc-addr", ":9090", "gRPC health listen address (empty disables)")
	f.StringSlice("stations", []string{"gate-1"}, "commissioned station ids")
	f.Bool("autostart", true, "start scanning at every configured station")
	f.Float64("match-threshold", match.DefaultThreshold, "face match distance threshold (strict)")
	f.Duration("debounce-window", service.DefaultDebounceWindow, "per-identity cool-down")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	logger := a.logger

	b, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	var grpcSrv *grpcapi.Server
	var observer service.StationObserver
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(grpcapi.Dependencies{
			Logger: logger.WithPrefix("grpc"),
			Addr:   cfg.GRPCAddr,
		})
		observer = grpcSrv
	}

	stations := service.NewStationManager(service.ManagerConfig{
		DebounceWindow: cfg.DebounceWindow,
		Matcher:        match.New(cfg.MatchThreshold),
	}, service.ManagerDependencies{
		Registry:   service.NewStationRegistry(b.stations),
		Identities: b.identities,
		Sessions:   b.sessions,
		Logger:     logger,
		Observer:   observer,
	})

	if cfg.Autostart {
		for _, id := range cfg.Stations {
			if _, err := stations.Start(ctx, id); err != nil {
				logger.Error("station autostart failed", "station", id, "err", err)
			}
		}
	}

	sweeper := service.NewDebounceSweeper(stations, cfg.DebounceSweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger.WithPrefix("http"),
		Addr:       cfg.HTTPAddr,
		Stations:   stations,
		Identities: a.identityService(b),
		Reports:    a.reportService(b),
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "db", cfg.DB.Driver)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if grpcSrv != nil {
		go func() {
			if err := grpcSrv.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server error", "err", serveErr)
	}

	stations.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	if grpcSrv != nil {
		grpcSrv.Shutdown(shutdownCtx)
	}
	return serveErr
}
