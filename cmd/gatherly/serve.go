package main

import (
	"fmt"
	"os"

	"github.com/gatherly-dev/gatherly/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort int
	serveMode string
)

// @title Gatherly API
// @version 1.0
// @description Events, RSVPs and role-based access control
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and/or notification worker",
	Long: `Start Gatherly with API and/or worker components.

Examples:
  gatherly serve                    # Run both API server and worker
  gatherly serve --mode server      # Run API server only (needs queue.type=valkey)
  gatherly serve --mode worker      # Run worker only (needs queue.type=valkey)
  gatherly serve --port 9000        # Override port

Environment variables:
  GATHERLY_SERVER_PORT         Server port (default: 8080)
  GATHERLY_DATABASE_DRIVER     Database driver: sqlite, postgres
  GATHERLY_DATABASE_DSN        Database connection string
  GATHERLY_QUEUE_TYPE          Queue type: memory, valkey
  GATHERLY_AUTH_JWT_SECRET     JWT signing secret
  GATHERLY_MAIL_TRANSPORT      Mail transport: log, smtp
  GATHERLY_MAIL_SECURITY       SMTP security: starttls, tls, none
  ADMIN_USERNAME               Bootstrap admin username
  ADMIN_PASSWORD               Bootstrap admin password`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
	serveCmd.Flags().StringVarP(&serveMode, "mode", "m", "both", "Run mode: server, worker, or both")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Mode:    serveMode,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
