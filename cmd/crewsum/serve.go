package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jllopis/crewsum/pkg/config"
	"github.com/jllopis/crewsum/pkg/errors"
	"github.com/jllopis/crewsum/pkg/modelclient"
	"github.com/jllopis/crewsum/pkg/server"
	"github.com/jllopis/crewsum/pkg/telemetry"
)

func (a *app) newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the summarisation pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := slog.Default()

	provider, err := modelclient.ParseProvider(cfg.LLM.Provider)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Output:       a.stderr,
	})
	if err != nil {
		return errors.New(errors.CodeInternal, "telemetry setup failed", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	var store *config.Store
	var watcher *config.CrewWatcher
	if cfg.Crew.Watch {
		watcher, err = config.NewCrewWatcher(cfg.Crew.Path,
			config.WithWatchInterval(cfg.Crew.WatchInterval()),
			config.WithWatchLogger(logger),
		)
		if err != nil {
			return NewConfigError(err, cfg.Crew.Path)
		}
		store = watcher.Store()
	} else {
		store, err = config.LoadCrew(cfg.Crew.Path)
		if err != nil {
			return NewConfigError(err, cfg.Crew.Path)
		}
	}

	runner, err := newRunner(cfg, store, logger, false)
	if err != nil {
		return err
	}
	handler := server.NewHandler(runner,
		server.WithLogger(logger),
		server.WithRequestTimeout(cfg.Server.RequestTimeout()),
		server.WithDefaultProvider(provider),
	)

	if watcher != nil {
		watcher.OnChange(func(s *config.Store) {
			next, err := newRunner(cfg, s, logger, false)
			if err != nil {
				logger.Error("cannot rebuild pipeline after crew reload", "error", err)
				return
			}
			handler.SetRunner(next)
		})
		handler.RegisterHealthCheck("crew_watch", func(context.Context) server.HealthResult {
			if err := watcher.LastError(); err != nil {
				return server.HealthResult{Status: server.HealthDegraded, Message: "serving previous crew: " + err.Error()}
			}
			return server.HealthResult{Status: server.HealthHealthy}
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	return server.Serve(ctx, cfg.Server.Addr, handler, logger)
}
