package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/config"
	"github.com/BrandonDHaskell/Portunus/gate/internal/db"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/memory"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/postgres"
	sqlitestore "github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/sqlite"
)

type backend struct {
	identities store.IdentityStore
	sessions   store.SessionStore
	stations   store.StationStore
	close      func()
}

func (b *backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// openBackend builds the stores for cfg.DB.Driver. Configured stations are
// always commissioned.
func (a *app) openBackend(ctx context.Context) (*backend, error) {
	cfg := a.cfg
	switch cfg.DB.Driver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory storage; sessions are lost on exit")
		return &backend{
			identities: memory.NewIdentityStore(),
			sessions:   memory.NewSessionStore(),
			stations:   memory.NewStationStore(cfg.Stations),
		}, nil

	case config.DriverPostgres:
		if cfg.DB.URL == "" {
			return nil, errors.New("db.url is required for the postgres driver")
		}
		conn, err := postgres.Open(ctx, postgres.Config{
			URL:          cfg.DB.URL,
			MaxOpenConns: cfg.DB.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		a.logger.Info("postgres connected")
		return &backend{
			identities: postgres.NewIdentityStore(conn),
			sessions:   postgres.NewSessionStore(conn),
			stations:   memory.NewStationStore(cfg.Stations),
			close:      func() { _ = conn.Close() },
		}, nil

	default:
		conn, err := db.Open(ctx, db.Config{Path: cfg.DB.Path, Env: cfg.Env})
		if err != nil {
			return nil, err
		}
		w := db.NewWorker(conn)
		closeAll := func() {
			w.Close()
			_ = conn.Close()
		}

		stations := sqlitestore.NewStationStore(conn, w)
		if err := stations.Commission(ctx, cfg.Stations, time.Now()); err != nil {
			closeAll()
			return nil, fmt.Errorf("commission stations: %w", err)
		}
		if cfg.IsDev() {
			if err := db.SeedDev(ctx, conn, db.SeedDevOptions{Stations: cfg.Stations}); err != nil {
				closeAll()
				return nil, err
			}
			a.logger.Debug("dev seed applied", "stations", cfg.Stations)
		}
		a.logger.Info("sqlite opened", "path", cfg.DB.Path)

		return &backend{
			identities: sqlitestore.NewIdentityStore(conn, w),
			sessions:   sqlitestore.NewSessionStore(conn, w),
			stations:   stations,
			close:      closeAll,
		}, nil
	}
}

func (a *app) identityService(b *backend) *service.IdentityService {
	return service.NewIdentityService(b.identities, a.cfg.QRSize)
}

func (a *app) reportService(b *backend) *service.ReportService {
	return service.NewReportService(b.identities, b.sessions, time.Local)
}
