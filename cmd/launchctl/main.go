package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/motheroflaunch/backend/internal/cache"
	"github.com/motheroflaunch/backend/internal/config"
	"github.com/motheroflaunch/backend/internal/database"
	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/spf13/cobra"
)

var (
	output string = "text" // "text" or "json"
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "launchctl",
	Short: "launchctl - operate the Mother of Launch launch scheduler",
	Long: `launchctl runs launch-day maintenance directly against the database:
finalizing days, recounting votes, taking and restoring vote backups, and
minting development tokens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		return logger.Initialize(cfg.Log.Level, "-")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(finalizeCmd)
	rootCmd.AddCommand(recountCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(reindexCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openLaunches connects to the database and builds the launch service.
// Redis is used for locking when configured so the CLI never races a
// running server.
func openLaunches() (*launch.Service, func(), error) {
	if err := database.Initialize(cfg); err != nil {
		return nil, nil, err
	}

	var locker cache.Locker = cache.NewLocalLocker()
	var opts []launch.Option
	var rc *cache.RedisClient
	if cfg.Redis.Host != "" {
		var err error
		rc, err = cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			_ = database.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		locker = cache.NewRedisLocker(rc, cfg.Launch.LockTTL)
		opts = append(opts, launch.WithRedis(rc))
	}

	launchCfg := launch.DefaultConfig()
	launchCfg.FreeCapacity = cfg.Launch.FreeCapacity
	launchCfg.PremiumCapacity = cfg.Launch.PremiumCapacity
	launchCfg.FreeLeadDays = cfg.Launch.FreeLeadDays

	svc := launch.NewService(database.DB, locker, premium.NewService(database.DB), launchCfg, opts...)
	cleanup := func() {
		if rc != nil {
			_ = rc.Close()
		}
		_ = database.Close()
		_ = logger.Close()
	}
	return svc, cleanup, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
