package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/palletwine/palletwine-backend/pkg/logger"
)

func TestCloseRunsInReverseOnce(t *testing.T) {
	p := &Process{Logger: logger.Nop()}
	var order []string
	p.OnClose("database", func() error { order = append(order, "database"); return nil })
	p.OnClose("redis", func() error { order = append(order, "redis"); return errors.New("already closed") })
	p.OnClose("pubsub", func() error { order = append(order, "pubsub"); return nil })

	p.Close(context.Background())
	p.Close(context.Background())

	if got := strings.Join(order, ","); got != "pubsub,redis,database" {
		t.Fatalf("unexpected close order %q", got)
	}
}

func TestServeMetricsDisabledWithoutAddr(t *testing.T) {
	done, err := ServeMetrics(context.Background(), "", prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("ServeMetrics: %v", err)
	}
	if _, open := <-done; open {
		t.Fatal("expected closed channel when disabled")
	}
}

func TestServeMetricsStopsOnCancel(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "palletwine_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	ctx, cancel := context.WithCancel(context.Background())
	done, err := ServeMetrics(ctx, "127.0.0.1:0", reg, logger.Nop())
	if err != nil {
		t.Fatalf("ServeMetrics: %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listener exited with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

func TestServeMetricsServesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "palletwine_outbox_backlog", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr := "127.0.0.1:39517"
	if _, err := ServeMetrics(ctx, addr, reg, nil); err != nil {
		t.Skipf("port unavailable: %v", err)
	}

	var body string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err == nil {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(raw)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(body, "palletwine_outbox_backlog 4") {
		t.Fatalf("expected gauge in scrape, got %q", body)
	}
}
