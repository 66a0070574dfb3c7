/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/dashboard-sync/internal/bootstrap"
	"github.com/spf13/cobra"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print one normalized dashboard snapshot",
	Long: `Fetch the dashboard snapshot once and print it normalized as JSON. With --cached
the snapshot mirrored in redis by a running sync client is printed instead.`,
	Run: bootstrap.StartSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().Bool("cached", false, "read the snapshot mirrored in redis instead of the backend")
	snapshotCmd.Flags().Uint64("council", 0, "also print this many archived council messages")
}
