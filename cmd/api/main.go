package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cartsync/internal/config"
	"cartsync/internal/db"
	"cartsync/internal/httpserver"
	"cartsync/internal/remote"
	"cartsync/internal/repository/cartitem"
	"cartsync/internal/service/cartsync"
	"cartsync/internal/service/presenter"
	"cartsync/internal/session"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	godotenv.Load()
	cfg := config.FromEnv()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()

	repo, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("open cart store")
	}
	defer cleanup()

	decrementMode, err := cartsync.ParseReconcileMode(cfg.DecrementMode)
	if err != nil {
		logger.WithError(err).Fatal("parse DECREMENT_RECONCILE")
	}

	feed := cartitem.NewFeed(repo, logger)
	client := remote.NewHTTP(cfg.RemoteCartURL, nil)
	syncSvc := cartsync.New(feed, client, session.FromContext(), logger, cartsync.Options{
		DecrementReconcile: decrementMode,
	})
	projector := presenter.New(ctx, feed, cfg.ShippingCents)
	defer projector.Close()

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Store:     feed,
		Sync:      syncSvc,
		Projector: projector,
	})
	if err != nil {
		logger.WithError(err).Fatal("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		logger.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	} else {
		logger.Info("server stopped")
	}
}

func openStore(ctx context.Context, cfg config.Config) (cartitem.Repository, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, err
		}
		return cartitem.NewPostgres(pool), pool.Close, nil
	case "sqlite":
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo, err := cartitem.NewSQLite(sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return repo, func() { sqlDB.Close() }, nil
	case "memory":
		return cartitem.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
