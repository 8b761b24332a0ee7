package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr       string
	serveTraceEvery int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for background experiment jobs",
	Long: `Starts an HTTP server that runs experiments as background jobs, streams their
progress over server-sent events and stores completed runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().IntVar(&serveTraceEvery, "trace-every", 100, "Record every N-th step of each algorithm (0 = no trace)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := server.Options{Base: cfg, Store: st}
	if serveTraceEvery > 0 {
		opts.TraceDir = dataDir
		opts.TraceEvery = serveTraceEvery
	}
	srv := server.NewServer(serveAddr, opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
