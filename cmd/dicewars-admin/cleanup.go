package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lab1702/dicewars/config"
	"github.com/lab1702/dicewars/store/pgstore"
)

// newCleanupStaleGamesCmd implements the cleanup-stale-games subcommand
// (spec.md §6), a direct Go counterpart of the original Django management
// command cleanup_stale_games.py: delete every room still `waiting` more
// than --stale-after ago.
func newCleanupStaleGamesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:           "cleanup-stale-games",
		Short:         "Remove waiting rooms that were never started.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCleanup(cmd.Context(), cfg)
		},
	}
}

func runCleanup(ctx context.Context, cfg *config.Config) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	s := pgstore.New(pool)
	cutoff := time.Now().Add(-cfg.StaleAfter)

	n, err := s.DeleteStaleWaiting(ctx, cutoff)
	if err != nil {
		return err
	}

	if n == 0 {
		fmt.Println("No stale game rooms found.")
		return nil
	}
	fmt.Printf("Successfully removed %d stale game room(s) created before %s.\n", n, cutoff.Format(time.RFC3339))
	return nil
}
