// Command probe samples the configured document collections and prints,
// per collection, the field paths found with their value types and
// uniqueness.
//
// It is meant for checking a new feed before migrating it: which path
// carries the repeat-purchase flag, whether sessions carry has_sale, how
// often order.products is missing.
//
//	probe -config recsys.yaml -n 500 -collection products
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recsys/internal/cli"
	"recsys/internal/probe"
)

func main() {
	var (
		cfgPath    string
		collection string
		limit      int
		distinct   int
	)

	flag.StringVar(&cfgPath, "config", "", "YAML config path (default $RECSYS_CONFIG or ./recsys.yaml)")
	flag.StringVar(&collection, "collection", "", "collection to sample (default: products, visitors and sessions from the config)")
	flag.IntVar(&limit, "n", 1000, "documents sampled per collection")
	flag.IntVar(&distinct, "max-distinct", 10000, "distinct values tracked per path")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	cfg := cli.LoadConfig(cfgPath, false, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := cli.OpenSource(ctx, cfg.Source)
	if err != nil {
		cli.Fatalf("open source: %v", err)
	}
	defer closeSrc()

	collections := []string{cfg.Collections.Products, cfg.Collections.Visitors, cfg.Collections.Sessions}
	if collection != "" {
		collections = []string{collection}
	}

	for i, c := range collections {
		rep, err := probe.Collection(ctx, src, c, probe.Options{Limit: limit, MaxDistinct: distinct})
		if err != nil {
			closeSrc()
			cli.Fatalf("%v", err)
		}
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(rep.Format())
	}
}
