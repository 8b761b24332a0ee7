package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/store"
	"github.com/spf13/cobra"
)

// Store backends
const (
	storeFS     = "fs"
	storeSQLite = "sqlite"
)

var (
	logLevel   string
	logger     *slog.Logger
	configPath string
	seed       int64
	parallel   int
	storeKind  string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:   "optbench",
	Short: "Randomized optimization experiments",
	Long: `optbench compares randomized hill climbing, simulated annealing, a genetic
algorithm and MIMIC on neural network weight training, the traveling salesman
problem and the two colors problem.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logger
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		// stdout carries the reports
		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&configPath, "config", "", "Experiment config file (YAML)")
	flags.Int64Var(&seed, "seed", 0, "Random seed (0 = config value)")
	flags.IntVar(&parallel, "parallel", 0, "Algorithms run concurrently (0 = config value)")
	flags.StringVar(&storeKind, "store", storeFS, "Run store backend: fs or sqlite")
	flags.StringVar(&dataDir, "data-dir", "./data", "Base directory for stored runs and traces")
}

// loadConfig reads --config, or the defaults without one, and applies the
// global overrides
func loadConfig(o config.Overrides) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	o.Seed = seed
	o.Parallel = parallel
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the --store backend under --data-dir. The returned close
// function releases it.
func openStore(ctx context.Context) (store.Store, func() error, error) {
	switch storeKind {
	case storeFS:
		fsStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create run store: %w", err)
		}
		return fsStore, func() error { return nil }, nil
	case storeSQLite:
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db := store.NewSQLiteStore(filepath.Join(dataDir, "runs.db"))
		if err := db.Init(ctx); err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want %s or %s)", storeKind, storeFS, storeSQLite)
	}
}
