package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"recsys/internal/cli"
	"recsys/internal/contentrule"
	"recsys/internal/loader"
	"recsys/internal/logging"
	"recsys/internal/storage"

	_ "recsys/internal/storage/all"
)

// main rebuilds the content_rule table from the loaded product table.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "YAML config path (default $RECSYS_CONFIG or ./recsys.yaml)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides metrics.backend)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides metrics.pushgateway_url)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	cfg := cli.LoadConfig(cfgPath, validate, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := cli.SetupMetrics(ctx, cfg.Metrics, metricsBackendFlg, pushGatewayURLFlg)
	defer shutdownMetrics()

	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		cli.Fatalf("open storage: %v", err)
	}
	defer repo.Close()

	if cfg.Load.CreateTables {
		if err := storage.EnsureTables(ctx, repo, storage.Tables()); err != nil {
			cli.Fatalf("%v", err)
		}
	}

	log := logging.With().Str("step", "content_rule").Logger()
	l := &loader.Loader{
		Repo:      repo,
		BatchSize: cfg.Load.BatchSize,
		Progress:  loader.Tee(loader.LogReporter(log), loader.MetricsReporter()),
	}
	res, err := contentrule.Rebuild(ctx, l)
	if err != nil {
		log.Error().Err(err).Msg("content rule rebuild failed")
		shutdownMetrics()
		repo.Close()
		os.Exit(1)
	}
	log.Info().Int64("rules", res.Inserted).Dur("duration", res.Duration).Msg("content rules rebuilt")
}
