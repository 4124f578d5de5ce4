package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"recsys/internal/cli"
	"recsys/internal/loader"
	"recsys/internal/logging"
	"recsys/internal/pipeline"
	"recsys/internal/recommend"
	"recsys/internal/storage"

	// register all backends with the storage factory; the config picks one.
	_ "recsys/internal/storage/all"
)

// main migrates the document collections into the relational tables,
// then optionally rebuilds content rules and enforces references.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		tablesFlg         string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "YAML config path (default $RECSYS_CONFIG or ./recsys.yaml)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides metrics.backend)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides metrics.pushgateway_url)")
	flag.StringVar(&tablesFlg, "tables", "", "comma-separated tables to load (default all)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	cfg := cli.LoadConfig(cfgPath, validate, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics := cli.SetupMetrics(ctx, cfg.Metrics, metricsBackendFlg, pushGatewayURLFlg)
	defer shutdownMetrics()

	policy, err := loader.ParseOnRowError(cfg.Load.OnRowError)
	if err != nil {
		cli.Fatalf("%v", err)
	}
	tables := cfg.Load.Tables
	if tablesFlg != "" {
		tables = nil
		for _, t := range strings.Split(tablesFlg, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tables = append(tables, t)
			}
		}
	}

	src, closeSrc, err := cli.OpenSource(ctx, cfg.Source)
	if err != nil {
		cli.Fatalf("open source: %v", err)
	}
	defer closeSrc()

	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		cli.Fatalf("open storage: %v", err)
	}
	defer repo.Close()

	r := &pipeline.Runner{
		Source: src,
		Repo:   repo,
		Jobs:   pipeline.DefaultJobs(cfg.Collections, cfg.Fields),
	}

	// Cached recommendations are scoped to a data generation; bump it once
	// the tables change.
	if addr := cfg.Recommend.Cache.RedisAddr; addr != "" {
		goredis.SetLogger(logging.Printf{L: logging.With().Str("component", "redis").Logger()})
		c, err := recommend.NewRedisCache(ctx, addr, cfg.Recommend.Cache.TTL)
		if err != nil {
			cli.Fatalf("recommendation cache %s: %v", addr, err)
		}
		defer c.Close()
		r.Invalidate = c.Invalidate
	}

	rep, err := r.Run(ctx, pipeline.Options{
		CreateTables:      cfg.Load.CreateTables,
		EnforceReferences: cfg.Load.EnforceReferences,
		ContentRules:      cfg.Load.ContentRules,
		OnRowError:        policy,
		BatchSize:         cfg.Load.BatchSize,
		Tables:            tables,
	})
	if err != nil {
		logging.Error().Err(err).Str("run_id", rep.RunID).Msg("migration failed")
		shutdownMetrics()
		closeSrc()
		repo.Close()
		os.Exit(1)
	}

	for _, t := range rep.Tables {
		logging.Info().Str("table", t.Table).Int64("inserted", t.Inserted).Int64("skipped", t.Skipped).Send()
	}
	for fk, n := range rep.Orphans {
		if n > 0 {
			logging.Info().Str("constraint", fk).Int64("deleted", n).Msg("orphans removed")
		}
	}
}
