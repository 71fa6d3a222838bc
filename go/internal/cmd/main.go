package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/planningpoker/go/internal/deck"
)

const version = "1.0.0"

var envFile string

var rootCmd = &cobra.Command{
	Use:          "poker",
	Short:        "Planning poker room server",
	Version:      version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(envFile)
		if err != nil {
			return err
		}
		setupLogging(cfg, os.Stderr)
		return runServer(cmd.Context(), cfg)
	},
}

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Print the card deck the server would use",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(envFile)
		if err != nil {
			return err
		}
		d, err := deck.LoadOrDefault(cfg.DeckFile)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(deckCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *Config) error {
	services, err := setupServices(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	server := setupServer(cfg, services, prometheus.DefaultGatherer)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	services.Start(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("version", version).Msg("planning poker server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		cancelWorkers()
		services.Stop()
		return err
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close subscriptions first so open event streams let Shutdown finish
	cancelWorkers()
	services.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("planning poker server shutdown complete")
	return nil
}
