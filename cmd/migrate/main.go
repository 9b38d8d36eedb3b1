package main

import (
	"fmt"
	"os"

	"github.com/motheroflaunch/backend/internal/config"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/logger"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	default:
		fmt.Println("Usage: migrate [up]")
		fmt.Println("  up     - Create or update every table and index")
		os.Exit(1)
	}
}

func runMigrationsUp() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.Log.Level, "-"); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.SugaredLog
	defer logger.Close()

	log.Info("🔄 Connecting to database...")
	if err := database.Initialize(cfg); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Info("📈 Running migrations...")
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Info("✅ All migrations completed successfully!")
}
