package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/config"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
)

func testConfig(t *testing.T, endpoints string) config.Config {
	t.Helper()
	return config.Config{
		LogDir:        t.TempDir(),
		LogLevel:      "info",
		CheckInterval: time.Hour,
		ProbeTimeout:  time.Second,
		MaxConcurrent: 2,
		ShutdownGrace: time.Second,
		DownThreshold: 10,
		AlertCooldown: 10 * time.Minute,
		QueueURL:      "mem://",
		QueueName:     "monitor-" + strings.ReplaceAll(t.Name(), "/", "-"),
		ReconnectMax:  10 * time.Millisecond,
		OpsAddr:       "off",
		DevEndpoints:  endpoints,
	}
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(t, ts.URL+"=owner@a.test"), zap.NewNop()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRun_OpsListenFailureStopsPipeline(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.OpsAddr = "127.0.0.1:-1"

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), cfg, zap.NewNop()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "ops server") {
			t.Fatalf("want ops server error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listen failure should cancel the other loops")
	}
}

func TestSeedDev(t *testing.T) {
	st := memory.New()
	if err := seedDev(st, " https://a.test=a@a.test , ,https://b.test=b@b.test"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	eps, _ := st.ListEndpoints(context.Background())
	if len(eps) != 2 || eps[0].ID != "dev-1" || eps[1].URL != "https://b.test" || eps[1].OwnerEmail != "b@b.test" {
		t.Fatalf("unexpected endpoints: %+v", eps)
	}

	if err := seedDev(memory.New(), "=nobody@x.test"); err == nil {
		t.Fatal("entry without url should be rejected")
	}
}
