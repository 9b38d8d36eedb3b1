package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/motheroflaunch/backend/internal/config"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/legacy"
	"github.com/motheroflaunch/backend/internal/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Convert and count documents without writing")
	timeout := flag.Duration("timeout", 30*time.Minute, "Abort the import after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	_ = logger.Initialize(cfg.Log.Level, "-")
	defer logger.Close()
	log := logger.SugaredLog

	if cfg.Legacy.MongoURI == "" {
		log.Fatal("❌ LEGACY_MONGO_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Info("🔄 Connecting to legacy MongoDB...")
	src, err := legacy.Dial(ctx, cfg.Legacy.MongoURI, cfg.Legacy.Database)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer src.Close(context.Background())

	if err := database.Initialize(cfg); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	stats, err := legacy.NewImporter(database.DB, src, *dryRun).Run(ctx)
	if err != nil {
		log.Fatalf("❌ Import failed after %d users, %d tools, %d blogs: %v", stats.Users, stats.Tools, stats.Blogs, err)
	}

	log.Infof("✅ Imported %d users, %d tools, %d blogs (%d skipped)", stats.Users, stats.Tools, stats.Blogs, stats.Skipped)
}
