// Package main provides the airwatch CLI: exploration and harvesting of
// air-quality station inventories for Senegal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/Edwouard/SenegalAirWatch/internal/config"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "airwatch"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	// SIGINT/SIGTERM stop issuing new requests; in-flight work completes and
	// a partial result is still exported.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:    serviceName,
		Usage:   "explore OpenAQ air-quality stations in Senegal and export their inventory",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "country", Usage: "ISO country code to explore"},
			&cli.StringFlag{Name: "output", Usage: "output directory for artifacts"},
			&cli.IntFlag{Name: "concurrency", Usage: "parallel station fetches"},
			&cli.DurationFlag{Name: "timeout", Usage: "per-request timeout"},
			&cli.IntFlag{Name: "retries", Usage: "retry budget for transient failures"},
			&cli.DurationFlag{Name: "run-timeout", Usage: "wall-clock ceiling for a whole run"},
		},
		Commands: []*cli.Command{
			exploreCommand(log),
			watchCommand(log),
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

// loadConfig merges environment configuration with command-line overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("country") {
		cfg.CountryISO = cmd.String("country")
	}
	if cmd.IsSet("output") {
		cfg.OutputDir = cmd.String("output")
	}
	if cmd.IsSet("concurrency") {
		cfg.Concurrency = cmd.Int("concurrency")
	}
	if cmd.IsSet("timeout") {
		cfg.RequestTimeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("retries") {
		if n := cmd.Int("retries"); n >= 0 {
			cfg.MaxRetries = uint64(n)
		}
	}
	if cmd.IsSet("run-timeout") {
		cfg.RunTimeout = cmd.Duration("run-timeout")
	}
	if cmd.IsSet("interval") {
		cfg.WatchInterval = cmd.Duration("interval")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
