// Package cli holds the start-up steps shared by the recsys commands:
// config loading, logging, metrics backend selection and opening the
// document source.
package cli

import (
	"context"
	"fmt"
	"os"

	"recsys/internal/config"
	"recsys/internal/document"
	"recsys/internal/document/jsonfile"
	"recsys/internal/document/mongo"
	"recsys/internal/logging"
	"recsys/internal/metrics"
	"recsys/internal/metrics/datadog"
	"recsys/internal/metrics/prompush"
)

// Fatalf prints to stderr and exits 1.
func Fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// LoadConfig loads path, prints every issue and exits on an invalid
// config. With validateOnly it exits 0 after a successful check. verbose
// forces debug logging.
func LoadConfig(path string, validateOnly, verbose bool) *config.Config {
	cfg, err := config.LoadUnvalidated(path)
	if err != nil {
		Fatalf("%v", err)
	}
	if issues := cfg.Issues(); len(issues) > 0 {
		for _, iss := range issues {
			fmt.Fprintf(os.Stderr, "error: %s\n", iss)
		}
		Fatalf("configuration is invalid")
	}
	if validateOnly {
		fmt.Fprintln(os.Stderr, "configuration is valid")
		os.Exit(0)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}
	logging.Init(cfg.Logging)
	return cfg
}

// SetupMetrics installs the backend named by backend (falling back to
// mc.Backend) and returns the function that flushes and closes it. An
// unusable backend logs a warning and leaves metrics disabled.
func SetupMetrics(ctx context.Context, mc config.MetricsConfig, backend, gatewayURL string) (shutdown func()) {
	if backend == "" {
		backend = mc.Backend
	}
	if gatewayURL == "" {
		gatewayURL = mc.PushgatewayURL
	}
	nop := func() {}

	switch backend {
	case "pushgateway":
		b, err := prompush.NewBackend(mc.Job, gatewayURL)
		if err != nil {
			logging.Warn().Err(err).Msg("metrics: pushgateway backend unavailable; using nop")
			return nop
		}
		logging.Info().Str("backend", backend).Str("url", gatewayURL).Str("job", mc.Job).Msg("metrics enabled")
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				logging.Warn().Err(err).Msg("metrics: flush failed")
			}
		}

	case "datadog":
		tags := append(append([]string(nil), mc.Tags...), datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    mc.Job,
			Tags:       tags,
			FlushEvery: mc.FlushEvery,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("metrics: datadog backend unavailable; using nop")
			return nop
		}
		logging.Info().Str("backend", backend).Str("job", mc.Job).Strs("tags", tags).Msg("metrics enabled")
		metrics.SetBackend(b)
		// Close stops the flush loop and submits what is still buffered.
		return func() {
			if err := b.Close(); err != nil {
				logging.Warn().Err(err).Msg("metrics: datadog close failed")
			}
		}

	case "", "none":
		logging.Debug().Msg("metrics disabled")
		return nop

	default:
		logging.Warn().Str("backend", backend).Msg("metrics: unknown backend; metrics disabled")
		return nop
	}
}

// OpenSource opens the configured document store. close releases it.
func OpenSource(ctx context.Context, sc config.SourceConfig) (src document.Source, closeFn func(), err error) {
	switch sc.Kind {
	case "mongo":
		cctx := ctx
		if sc.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, sc.Timeout)
			defer cancel()
		}
		s, err := mongo.Open(cctx, sc.URI, sc.Database)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(context.Background()); err != nil {
				logging.Warn().Err(err).Msg("mongo: disconnect failed")
			}
		}, nil

	case "jsonfile":
		s, err := jsonfile.New(sc.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported source.kind=%q (want mongo|jsonfile)", sc.Kind)
	}
}
