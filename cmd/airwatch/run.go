package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Edwouard/SenegalAirWatch/internal/config"
	"github.com/Edwouard/SenegalAirWatch/internal/explorer"
	"github.com/Edwouard/SenegalAirWatch/internal/export"
	"github.com/Edwouard/SenegalAirWatch/internal/openaq"
	"github.com/Edwouard/SenegalAirWatch/internal/scheduler"
	"github.com/Edwouard/SenegalAirWatch/internal/telemetry"
)

// exploreCommand runs one traversal and export.
func exploreCommand(log zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "explore",
		Usage: "run one exploration of the station/sensor hierarchy and export the inventory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withTelemetry(ctx, cfg, log, func(ctx context.Context) error {
				return runExploration(ctx, cfg, log)
			})
		},
	}
}

// watchCommand re-runs the exploration on a fixed interval.
func watchCommand(log zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "re-run the exploration periodically until interrupted",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Usage: "pause between runs"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withTelemetry(ctx, cfg, log, func(ctx context.Context) error {
				sched := scheduler.New(cfg.WatchInterval, func(ctx context.Context) error {
					return runExploration(ctx, cfg, log)
				}, log)

				if err := sched.Start(ctx); err != nil {
					return err
				}
				defer sched.Stop()

				<-ctx.Done()
				log.Info().Msg("watch mode stopping")
				return nil
			})
		},
	}
}

// withTelemetry initializes OpenTelemetry around fn and flushes on exit.
func withTelemetry(ctx context.Context, cfg *config.Config, log zerolog.Logger, fn func(ctx context.Context) error) error {
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	return fn(ctx)
}

// runExploration walks the hierarchy once and exports every artifact. A run
// with partial failures is still a success; only an unusable run (failed
// authentication or an unreachable locations endpoint) returns an error.
func runExploration(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	tracer := telemetry.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "exploration.run")
	defer span.End()

	client := openaq.NewClient(openaq.ClientConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		PageLimit:  cfg.PageLimit,
		Logger:     log,
	})

	walker := explorer.NewWalker(explorer.WalkerConfig{
		Client:      client,
		CountryISO:  cfg.CountryISO,
		Concurrency: cfg.Concurrency,
		RunTimeout:  cfg.RunTimeout,
		Logger:      log,
	})

	result, err := walker.Explore(ctx)
	if err != nil {
		return err
	}

	span.SetAttributes(
		attribute.Int("airwatch.stations", len(result.Stations)),
		attribute.Int("airwatch.sensors", result.TotalSensors()),
		attribute.Int("airwatch.failures", len(result.Failures)),
		attribute.Bool("airwatch.aborted", result.Aborted),
	)

	exporter := export.New(export.Config{
		OutputDir: cfg.OutputDir,
		Logger:    log,
	})

	artifacts, err := exporter.Export(ctx, result)
	if err != nil {
		return err
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("artifacts", len(artifacts)).
		Int("failures", len(result.Failures)).
		Msg("exploration run complete")

	return nil
}
