package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"recsys/internal/config"
	"recsys/internal/document"
	"recsys/internal/metrics"
)

func TestOpenSource_JSONFile(t *testing.T) {
	dir := t.TempDir()
	body := `{"_id": {"$oid": "5f1e0c9c8f1b2a3c4d5e6f70"}, "brand": "Acme"}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "products.jsonl"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	src, closeFn, err := OpenSource(context.Background(), config.SourceConfig{Kind: "jsonfile", Dir: dir})
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer closeFn()

	rows, err := document.Extract(context.Background(), src, "products", []document.FieldSpec{document.Field("brand")}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "Acme" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestOpenSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		sc   config.SourceConfig
		want string
	}{
		{"unknown_kind", config.SourceConfig{Kind: "couch"}, `unsupported source.kind="couch"`},
		{"missing_dir", config.SourceConfig{Kind: "jsonfile", Dir: filepath.Join(t.TempDir(), "nope")}, "jsonfile:"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := OpenSource(context.Background(), tc.sc)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestSetupMetrics_Pushgateway(t *testing.T) {
	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/metrics/job/recsys-cli") {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	t.Cleanup(func() { metrics.SetBackend(nil) })

	mc := config.Default().Metrics
	mc.Job = "recsys-cli"
	shutdown := SetupMetrics(context.Background(), mc, "pushgateway", srv.URL)

	metrics.RecordStep("ddl", time.Now(), nil)
	shutdown()

	if pushes.Load() != 1 {
		t.Fatalf("pushes=%d, want 1", pushes.Load())
	}
}

func TestSetupMetrics_Disabled(t *testing.T) {
	t.Cleanup(func() { metrics.SetBackend(nil) })

	for _, backend := range []string{"none", "statsd"} {
		shutdown := SetupMetrics(context.Background(), config.Default().Metrics, backend, "")
		shutdown()
	}
	if err := metrics.Flush(); err != nil {
		t.Fatalf("Flush on nop backend: %v", err)
	}
}
