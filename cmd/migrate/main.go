package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/pending-subjects-api/pkg/config"
	"github.com/noah-isme/pending-subjects-api/pkg/database"
	"github.com/noah-isme/pending-subjects-api/pkg/logger"
)

func main() {
	statusOnly := flag.Bool("status", false, "print the current schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logr)
	latest, err := migrator.Latest()
	if err != nil {
		logr.Fatal("failed to read embedded migrations", zap.Error(err))
	}
	if *statusOnly {
		current, err := migrator.CurrentVersion()
		if err != nil {
			logr.Fatal("failed to read schema version", zap.Error(err))
		}
		logr.Info("schema status", zap.Int64("current", current), zap.Int64("latest", latest))
		return
	}

	current, err := migrator.Migrate()
	if err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}
	logr.Info("schema migrated", zap.Int64("current", current), zap.Int64("latest", latest))
}
