/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/dashboard-sync/internal/bootstrap"
	"github.com/spf13/cobra"
)

// syncClientCmd represents the sync-client command
var syncClientCmd = &cobra.Command{
	Use:   "sync-client",
	Short: "Start the dashboard sync client",
	Long: `The sync client polls the dashboard snapshot endpoint with backoff and keeps a
reconnecting websocket open to the council feed. The merged view is exposed on the HTTP
port, health is reported over gRPC, and events are forwarded to redis, postgres and
NATS JetStream when those are configured. Send SIGUSR1 to force a refresh.`,
	Run: bootstrap.StartSyncClient,
}

func init() {
	rootCmd.AddCommand(syncClientCmd)
}
