package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"race-predictor/internal/metrics"
	"race-predictor/internal/ml"
	"race-predictor/internal/predict"
	"race-predictor/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over HTTP and WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	var opts []predict.ServiceOption
	store := initializeStorage()
	if store != nil {
		defer store.Close()
		opts = append(opts, predict.WithHistory(store))
	}

	svc, err := predict.NewLoader(settings, mw, opts...).Load()
	if err != nil {
		return err
	}

	server := ml.NewServer(svc, settings.ListenPort, promhttp.Handler(), ml.WithModelTimeout(settings.ModelTimeout))
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(ctx, server, errCh)
}

// initializeStorage opens the prediction history when enabled
func initializeStorage() *storage.Store {
	if !settings.History {
		return nil
	}
	store, err := storage.New(settings.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without history")
		return nil
	}
	log.Info().Str("path", settings.DataPath).Msg("Prediction history enabled")
	return store
}

// waitForShutdown blocks until a signal arrives or the server fails
func waitForShutdown(ctx context.Context, server *ml.Server, errCh <-chan error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
