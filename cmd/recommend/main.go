package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"recsys/internal/cli"
	"recsys/internal/logging"
	"recsys/internal/recommend"
	"recsys/internal/storage"

	_ "recsys/internal/storage/all"
)

// main prints recommendations for one product (content rules) or one
// profile (collaborative), one product id per line.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		productID         string
		profileID         string
		amount            int
		comparative       int
		noCache           bool
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "YAML config path (default $RECSYS_CONFIG or ./recsys.yaml)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides metrics.backend)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides metrics.pushgateway_url)")
	flag.StringVar(&productID, "product", "", "recommend products similar to this product id")
	flag.StringVar(&profileID, "profile", "", "recommend products for this profile id")
	flag.IntVar(&amount, "n", 0, "number of recommendations (default recommend.amount)")
	flag.IntVar(&comparative, "k", 0, "number of comparative profiles (default recommend.comparative_users)")
	flag.BoolVar(&noCache, "no-cache", false, "bypass the Redis cache")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	if (productID == "") == (profileID == "") && !validate {
		cli.Fatalf("exactly one of -product or -profile is required")
	}

	cfg := cli.LoadConfig(cfgPath, validate, *verbose)
	if amount <= 0 {
		amount = cfg.Recommend.Amount
	}
	if comparative <= 0 {
		comparative = cfg.Recommend.ComparativeUsers
	}

	ctx := context.Background()

	shutdownMetrics := cli.SetupMetrics(ctx, cfg.Metrics, metricsBackendFlg, pushGatewayURLFlg)
	defer shutdownMetrics()

	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		cli.Fatalf("open storage: %v", err)
	}
	defer repo.Close()

	e := recommend.New(repo)
	if addr := cfg.Recommend.Cache.RedisAddr; addr != "" && !noCache && profileID != "" {
		goredis.SetLogger(logging.Printf{L: logging.With().Str("component", "redis").Logger()})
		c, err := recommend.NewRedisCache(ctx, addr, cfg.Recommend.Cache.TTL)
		if err != nil {
			logging.Warn().Err(err).Str("addr", addr).Msg("recommendation cache unavailable; continuing without it")
		} else {
			defer c.Close()
			e.Cache = c
		}
	}

	var ids []string
	if productID != "" {
		ids, err = e.ContentRecommendations(ctx, productID, amount)
	} else {
		ids, err = e.ProfileRecommendations(ctx, profileID, comparative, amount)
	}
	if err != nil {
		logging.Error().Err(err).Msg("recommend failed")
		shutdownMetrics()
		repo.Close()
		os.Exit(1)
	}

	if len(ids) > 0 {
		fmt.Println(strings.Join(ids, "\n"))
	}
}
