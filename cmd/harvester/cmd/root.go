package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/datakeep/harvester/internal/config"
	"github.com/datakeep/harvester/internal/fetch"
	"github.com/datakeep/harvester/internal/index"
	"github.com/datakeep/harvester/internal/index/fsindex"
	"github.com/datakeep/harvester/internal/index/pgindex"
)

var (
	// Global flags
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:   "harvester",
		Short: "Snapshot harvester for published statistical datasets",
		Long: `harvester captures versioned snapshots of externally published bulk
datasets. Each snapshot pairs the fetched payload, stored durably in an
S3-compatible bucket, with a metadata record appended to a local index.

A dataset is only re-fetched when the upstream server reports a
modification newer than the last recorded capture, so repeated runs are
cheap and idempotent.`,
	}
)

// Execute runs the root command with an interrupt-aware context. It is
// called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console)")

	rootCmd.AddCommand(faostatCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env files and the environment, applying global flag
// overrides.
func loadConfig() (config.Config, error) {
	config.LoadEnvFile(".env")

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func newHTTPClient(cfg config.Config) *fetch.Client {
	return fetch.NewClient(cfg.HTTP.Timeout, cfg.HTTP.MinInterval)
}

// newIndex opens the configured index backend. The returned closer is a
// no-op for the filesystem backend.
func newIndex(ctx context.Context, cfg config.Config, logger zerolog.Logger) (index.Index, func(), error) {
	switch cfg.Index.Backend {
	case "pg":
		ix, err := pgindex.Connect(ctx, cfg.Index.URL)
		if err != nil {
			return nil, nil, err
		}
		return ix, ix.Close, nil
	default:
		ix, err := fsindex.New(cfg.Index.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug().Str("dir", ix.Root()).Msg("using filesystem index")
		return ix, func() {}, nil
	}
}
