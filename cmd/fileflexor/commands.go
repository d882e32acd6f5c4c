package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/api/handlers/file"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/api/router"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/api/server"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/config"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/infra/kafka/consumer"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the cleanup sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// Collect files left behind by an earlier run.
	adopted, err := a.registry.Reconcile(ctx)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to reconcile stored files")
	}
	zlog.Logger.Info().Int("adopted", adopted).Msg("reconciled stored files")

	// Start the sweeper in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go a.registry.Run(ctx, cfg.Cleanup.SweepInterval, &wg)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(file.NewHandler(a.service), cfg.Server.StaticDir)
	s := server.New(cfg.Server.Addr(), r)
	go func() {
		zlog.Logger.Info().Str("addr", s.Addr).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Wait for the sweeper goroutine to finish.
	wg.Wait()

	return nil
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Adopt untracked files, delete every expired one and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			adopted, err := a.registry.Reconcile(ctx)
			if err != nil {
				return err
			}

			deleted, err := a.registry.Sweep(ctx)
			if err != nil {
				return err
			}

			zlog.Logger.Info().Int("adopted", adopted).Int("deleted", deleted).Msg("sweep finished")
			return nil
		},
	}
}

func newEventsCmd() *cobra.Command {
	var groupID string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail file lifecycle events from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if groupID != "" {
				cfg.Kafka.GroupID = groupID
			}

			c := consumer.New(&cfg.Kafka, retryStrategy(cfg), consumer.LogEvent)

			var wg sync.WaitGroup
			wg.Add(1)
			go c.Consume(ctx, &wg)
			wg.Wait()

			if err := c.Client.Close(); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&groupID, "group", "g", "", "Consumer group (overrides kafka.group_id)")
	return cmd
}
