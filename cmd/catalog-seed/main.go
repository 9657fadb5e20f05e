package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/adpulse-ai/platform/pkg/catalog"
	"github.com/adpulse-ai/platform/pkg/common/config"
	"github.com/adpulse-ai/platform/pkg/common/database"
	"github.com/adpulse-ai/platform/pkg/common/logger"
)

func main() {
	path := flag.String("file", os.Getenv("CATALOG_SEED_FILE"), "YAML seed file; the built-in catalog is used when empty")
	flag.Parse()

	logger.InitService("catalog-seed")
	cfg := config.Load()

	seed, err := catalog.LoadSeed(*path)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load catalog seed")
	}

	conn, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer conn.Close()

	repo := catalog.NewRepository(conn)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate catalog tables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	created, err := repo.Seed(ctx, seed)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to seed catalog")
	}

	logger.Log.WithFields(map[string]interface{}{
		"file":        *path,
		"ad_types":    len(seed.AdTypes),
		"new_metrics": created,
	}).Info("catalog seeded")
}
