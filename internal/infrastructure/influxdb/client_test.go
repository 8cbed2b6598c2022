package influxdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/infrastructure/config"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/influxdb"
)

// testConfig matches the local dev InfluxDB from docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "shopdesk-dev-token",
		Org:           "shopdesk",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1, // fast flush for test feedback
	}
}

// liveClient connects to the dev InfluxDB or skips the test when the server
// is not running. The client is closed on cleanup.
func liveClient(t *testing.T, cfg config.InfluxDBConfig) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Skipf("InfluxDB not available, skipping: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup
	return client
}

// writeRecorder captures async write errors race-safely.
type writeRecorder struct {
	mu  sync.Mutex
	err error
}

func (r *writeRecorder) record(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *writeRecorder) get() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Offline tests: no server required.

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_UnreachableServer(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	if _, err := influxdb.Connect(cfg); err == nil {
		t.Fatal("Connect() should return error for unreachable server")
	}
}

func TestZeroValueClient(t *testing.T) {
	var client influxdb.Client

	if client.IsConnected() {
		t.Error("zero-value client should not report connected")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero-value client error = %v", err)
	}
	// Writes on a disconnected client are silently dropped.
	client.Flush()
	client.WriteRequestMetric("GET", "/health", 200, 1.0)
	client.WriteBookingMetric("mot_test")
}

// Live tests: need the dev InfluxDB running.

func TestConnect(t *testing.T) {
	client := liveClient(t, testConfig())

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_BatchSettingDefaults(t *testing.T) {
	for _, tc := range []struct {
		name          string
		batchSize     int
		flushInterval int
	}{
		{"zero values", 0, 0},
		{"negative values", -5, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize = tc.batchSize
			cfg.FlushInterval = tc.flushInterval

			client := liveClient(t, cfg)
			if !client.IsConnected() {
				t.Error("IsConnected() = false with defaulted batch settings")
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	client := liveClient(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	client := liveClient(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should return error for cancelled context")
	}
}

func TestWrites(t *testing.T) {
	client := liveClient(t, testConfig())

	var rec writeRecorder
	client.SetOnError(rec.record)

	writes := map[string]func(){
		"request metric": func() {
			client.WriteRequestMetric("GET", "/api/v1/customers", 200, 12.5)
		},
		"booking metric": func() {
			client.WriteBookingMetric("oil_change")
		},
		"custom point": func() {
			client.WritePoint(
				"custom_measurement",
				map[string]string{"source": "test"},
				map[string]any{"value": 99.9, "count": 5},
			)
		},
		"custom point with time": func() {
			client.WritePointWithTime(
				"custom_measurement",
				map[string]string{"source": "test-with-time"},
				map[string]any{"value": 88.8},
				time.Now().Add(-1*time.Hour),
			)
		},
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			write()
			client.Flush()
			time.Sleep(100 * time.Millisecond) // let the error callback fire
			if err := rec.get(); err != nil {
				t.Errorf("write error = %v", err)
			}
		})
	}
}

func TestClose(t *testing.T) {
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available, skipping: %v", err)
	}

	client.WriteRequestMetric("GET", "/health", 200, 1.0)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
