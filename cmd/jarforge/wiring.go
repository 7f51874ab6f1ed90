package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/izavyalov-dev/jarforge/artifacts"
	"github.com/izavyalov-dev/jarforge/engine"
	"github.com/izavyalov-dev/jarforge/engine/transport"
	"github.com/izavyalov-dev/jarforge/internal/config"
	"github.com/izavyalov-dev/jarforge/internal/observability"
	"github.com/izavyalov-dev/jarforge/state"
)

func newEngineClient(cfg config.Config) *engine.Client {
	return engine.NewClient(transport.NewUnixClient(cfg.Engine.Socket), cfg.Engine.APIPrefix)
}

func openDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// openStore opens the build history database and applies migrations.
func openStore(ctx context.Context, databaseURL string) (*state.Store, func(), error) {
	db, err := openDB(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := state.NewStore(db)
	if _, err := store.ApplyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}

func startMetricsServer(listen string, check observability.HealthCheck, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Handler:           observability.NewHTTPHandler(check, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "event", "metrics_server_failed", "error", err)
		}
	}()
	logger.Info("metrics server started", "event", "metrics_server_started", "addr", ln.Addr().String())
	return server, nil
}

// recordingArchiver uploads log tails and stores their location in the
// build history when one is configured.
type recordingArchiver struct {
	uploader *artifacts.S3Uploader
	store    *state.Store
	logger   *slog.Logger
}

func (a recordingArchiver) UploadLogTail(ctx context.Context, kind, version, buildID, tail string) (string, error) {
	uri, err := a.uploader.UploadLogTail(ctx, kind, version, buildID, tail)
	if err != nil {
		return "", err
	}
	if a.store != nil && buildID != "" {
		if err := a.store.SetLogURI(ctx, buildID, uri); err != nil {
			a.logger.Warn("log uri not recorded", "event", "log_uri_record_failed", "build_id", buildID, "error", err)
		}
	}
	return uri, nil
}
