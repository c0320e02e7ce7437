package main

import (
	"os"

	_ "github.com/gatherly-dev/gatherly/docs" // Load swagger docs
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gatherly",
	Short: "Gatherly - events, RSVPs and roles",
	Long:  `Gatherly serves the event catalog, RSVP and role management API and delivers its notifications.`,
	Example: `  # Run API and notification worker
  gatherly serve

  # Prepare a database and load reference data
  gatherly migrate
  gatherly create-admin --username admin --email admin@example.com
  gatherly seed ./seed.toml`,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	serveCmd.GroupID = "server"
	migrateCmd.GroupID = "admin"
	createAdminCmd.GroupID = "admin"
	seedCmd.GroupID = "admin"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
