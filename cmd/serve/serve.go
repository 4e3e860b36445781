// Package serve implements the HTTP API server command.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huelab/huelab-go/internal/api"
	"github.com/huelab/huelab-go/internal/classifier"
	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/datastore"
	"github.com/huelab/huelab-go/internal/logging"
	"github.com/huelab/huelab-go/internal/observability"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the labeling API server",
		Long:  "Start the HTTP API server for record labeling, review and re-analysis.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runServer(settings *conf.Settings) error {
	logger := logging.ForService("server")

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no record store is enabled in the configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close record store", "error", err)
		}
	}()

	var clf classifier.Classifier
	if settings.Classifier.Endpoint != "" {
		httpClassifier, err := classifier.NewHTTPClient(settings)
		if err != nil {
			return fmt.Errorf("failed to create classifier client: %w", err)
		}
		clf = httpClassifier
	} else {
		logger.Warn("No classifier endpoint configured, analysis endpoints will be unavailable")
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	controller, err := api.New(e, store, settings, clf, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize API: %w", err)
	}
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("API server listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
