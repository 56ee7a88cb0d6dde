/*
main.go - Application entry point

PURPOSE:
  The frontdesk command: runs the cash desk API server and the operator
  commands around it.

COMMANDS:
  serve        Start the HTTP API (and the handover monitor)
  migrate      Create or update the database schema
  token        Mint a bearer token for a staff member
  staff add    Register a worker or manager
  staff list   Print the staff directory
  seed         Wipe the database and load a demo scenario

CONFIGURATION:
  Flags > FRONTDESK_* environment > config file > defaults.
  See config/config.go for every key.

EXAMPLES:
  # Run with file database
  frontdesk serve --db ./data/frontdesk.db

  # Register a manager and get a token
  frontdesk staff add --id mgr-1 --name "Maria" --role manager
  FRONTDESK_AUTH_JWT_SECRET=dev frontdesk token mgr-1

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp/frontdesk/config"
	"github.com/warp/frontdesk/store/sqlite"
)

var (
	cfgFile string
	version = "dev"

	// Flags are bound to v in init; the file is read in PersistentPreRunE
	// once --config is known.
	v   = config.New("")
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:               "frontdesk",
		Short:             "Front-desk cash shift and handover service",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./frontdesk.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (\":memory:\" for in-memory)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")

	// Bind flags to viper
	_ = v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	if err := setupLogging(cfg.Logging); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

func setupLogging(lc config.LoggingConfig) error {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch lc.Format {
	case "console":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// openStore opens the configured database.
func openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "frontdesk", version)
		},
	}
}
