package main

import (
	"context"

	"cartsync/internal/config"
	"cartsync/internal/db"
	"cartsync/internal/repository/cartitem"
	"cartsync/internal/seed"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	godotenv.Load()
	cfg := config.FromEnv()
	logger := logrus.New()

	ctx := context.Background()

	var repo cartitem.Repository
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			logger.WithError(err).Fatal("connect db")
		}
		defer pool.Close()
		repo = cartitem.NewPostgres(pool)
	default:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("open sqlite")
		}
		defer sqlDB.Close()
		repo, err = cartitem.NewSQLite(sqlDB)
		if err != nil {
			logger.WithError(err).Fatal("init sqlite schema")
		}
	}

	if err := seed.Apply(ctx, repo); err != nil {
		logger.WithError(err).Fatal("seed apply")
	}

	logger.Info("seed applied")
}
