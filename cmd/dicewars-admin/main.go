// Package main implements dicewars-admin, the operator CLI for one-off
// maintenance tasks against the DiceWars Postgres store — currently just
// the stale-room cleanup the server's janitor otherwise runs on a timer
// (spec.md §4.G), exposed here so an operator can trigger it by hand.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/lab1702/dicewars/config"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags)

	cfg := &config.Config{}
	cmd := newRootCmd(cfg)
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dicewars-admin",
		Short:         "Operator CLI for the DiceWars game server.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}

	config.BindFlags(cmd.PersistentFlags(), cfg)
	cmd.CompletionOptions.HiddenDefaultCmd = true

	cmd.AddCommand(newCleanupStaleGamesCmd(cfg))

	return cmd
}
