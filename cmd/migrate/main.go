package main

import (
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/infrastructure/database"
	"github.com/sangkips/bursar-api/pkg/logger"
	"go.uber.org/zap"
)

// Usage:
//
//	migrate up
//	migrate down -steps 1
//	migrate seed -tenant <uuid>
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|seed> [flags]")
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	tenant := fs.String("tenant", "", "tenant id to seed payment methods for")
	_ = fs.Parse(os.Args[2:])

	cfg := config.Load()
	zlog, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.NewPostgresDB(&cfg.Database, zlog, cfg.App.Debug)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}

	switch cmd {
	case "up":
		err = database.RunMigrations(db, zlog)
	case "down":
		err = database.RollbackMigrations(db, zlog, *steps)
	case "seed":
		var tenantID uuid.UUID
		tenantID, err = uuid.Parse(*tenant)
		if err == nil {
			err = database.SeedPaymentMethods(db, zlog, tenantID)
		}
	default:
		zlog.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		zlog.Fatal("migrate command failed", zap.String("command", cmd), zap.Error(err))
	}
}
