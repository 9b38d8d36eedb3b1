package main

import (
	"context"
	"fmt"
	"os"

	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/config"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/motheroflaunch/backend/internal/seed"
	"go.uber.org/zap"
)

func main() {
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev", "test", "clean":
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed a small fixed dataset for end-to-end tests")
		fmt.Println("  clean - Remove all marketplace data (use with caution)")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		fmt.Fprintln(os.Stderr, "❌ Refusing to seed a production database")
		os.Exit(1)
	}
	_ = logger.Initialize(cfg.Log.Level, "-")
	defer logger.Close()
	log := logger.SugaredLog

	if err := database.Initialize(cfg); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Info("✅ Database connected")

	ctx := context.Background()
	seeder := seed.NewSeeder(database.DB)

	switch command {
	case "dev":
		log.Info("🌱 Seeding development database...")
		premiumSvc := premium.NewService(database.DB)
		launchCfg := launch.DefaultConfig()
		launchCfg.FreeCapacity = cfg.Launch.FreeCapacity
		launchCfg.PremiumCapacity = cfg.Launch.PremiumCapacity
		launchCfg.FreeLeadDays = cfg.Launch.FreeLeadDays
		seeder.SetPremiumService(premiumSvc)
		seeder.SetLaunchService(launch.NewService(database.DB, cache.NewLocalLocker(), premiumSvc, launchCfg))

		if err := seeder.SeedDev(ctx, seed.DevCounts); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
		log.Info("✅ Development database seeded successfully!")
	case "test":
		log.Info("🧪 Seeding test database...")
		if err := seeder.SeedTest(ctx); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
		log.Info("✅ Test database seeded successfully!")
	case "clean":
		log.Info("🧹 Cleaning seed data...")
		if err := seeder.Clean(ctx); err != nil {
			logger.Log.Fatal("Clean failed", zap.Error(err))
		}
		log.Info("✅ Seed data cleaned successfully!")
	}
}
