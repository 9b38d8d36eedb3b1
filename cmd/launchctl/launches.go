package main

import (
	"fmt"

	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/spf13/cobra"
)

var forceFinalize bool

var finalizeCmd = &cobra.Command{
	Use:   "finalize [date]",
	Short: "Finalize a launch day, or every overdue day when no date is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openLaunches()
		if err != nil {
			return err
		}
		defer cleanup()
		ctx := cmd.Context()

		if len(args) == 0 {
			dates, err := svc.FinalizeDue(ctx)
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(map[string]interface{}{"finalized": dates})
			}
			if len(dates) == 0 {
				fmt.Println("No launch days are due")
			}
			for _, d := range dates {
				fmt.Printf("✓ Finalized %s\n", d)
			}
			return nil
		}

		results, err := svc.Finalize(ctx, args[0], forceFinalize)
		if err != nil {
			return err
		}
		return printResults(results)
	},
}

var recountCmd = &cobra.Command{
	Use:   "recount <date>",
	Short: "Rebuild a day's tallies from the individual votes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openLaunches()
		if err != nil {
			return err
		}
		defer cleanup()

		summaries, err := svc.Recount(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(summaries)
		}
		fmt.Printf("Recounted %d tools for %s\n", len(summaries), args[0])
		for _, s := range summaries {
			fmt.Printf("  %s  %d votes\n", s.ToolID, s.Votes)
		}
		return nil
	},
}

var backupActor string

var backupCmd = &cobra.Command{
	Use:   "backup <date>",
	Short: "Snapshot a day's votes and tallies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openLaunches()
		if err != nil {
			return err
		}
		defer cleanup()

		backup, err := svc.Backup(cmd.Context(), args[0], backupActor)
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(backup)
		}
		fmt.Printf("✓ Backup %s: %d votes for %s\n", backup.ID, backup.VoteCount, backup.Date)
		if backup.ObjectKey != "" {
			fmt.Printf("  Stored at %s\n", backup.ObjectKey)
		}
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups <date>",
	Short: "List the backups taken for a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openLaunches()
		if err != nil {
			return err
		}
		defer cleanup()

		backups, err := svc.ListBackups(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(backups)
		}
		if len(backups) == 0 {
			fmt.Printf("No backups for %s\n", args[0])
		}
		for _, b := range backups {
			fmt.Printf("%s  %s  %d votes  by %s\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"), b.VoteCount, b.CreatedBy)
		}
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover <backup-id>",
	Short: "Restore a day's votes from a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openLaunches()
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.Recover(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(result)
		}
		fmt.Printf("✓ Restored %d votes and %d tallies for %s\n", result.Votes, result.Summaries, result.Date)
		return nil
	},
}

func init() {
	finalizeCmd.Flags().BoolVar(&forceFinalize, "force", false, "Finalize even if the day has not ended")
	backupCmd.Flags().StringVar(&backupActor, "actor", "launchctl", "Recorded as the backup's creator")
}

func printResults(r *launch.DayResults) error {
	if output == "json" {
		return printJSON(r)
	}
	fmt.Printf("%s (%s)\n", r.Date, r.Status)
	for _, e := range r.Entries {
		fmt.Printf("  #%-3d %-30s %5d votes  [%s]\n", e.Rank, e.Name, e.Votes, e.Tier)
	}
	return nil
}
