// Command beeps-server runs the sync server: authentication, document
// listing, and the push/pull endpoints backed by Postgres.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytes-zone/beeps/pkg/auth"
	"github.com/bytes-zone/beeps/pkg/config"
	"github.com/bytes-zone/beeps/pkg/server"
	"github.com/bytes-zone/beeps/pkg/store"

	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("beeps-server exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store.Configure(db, cfg.DatabaseMaxConnections)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseAcquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return err
	}
	logger.Info("connected to database")

	st := store.New(db)
	if err := st.Init(ctx); err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecretBase64)
	if err != nil {
		return err
	}

	srv := server.New(st, issuer, cfg.AllowRegistration, cfg.BodyLimitBytes, cfg.RequestTimeout, logger)

	httpServer := &http.Server{
		Addr:    cfg.Address,
		Handler: srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Address)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
