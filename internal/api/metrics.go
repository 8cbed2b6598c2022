package api

import (
	"net/http"
	"runtime"
	"time"
)

const bytesPerMB = 1024 * 1024

// systemMetrics is the GET /metrics response body.
type systemMetrics struct {
	Timestamp     string `json:"timestamp"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	Runtime struct {
		Goroutines    int     `json:"goroutines"`
		MemoryAllocMB float64 `json:"memory_alloc_mb"`
		MemoryTotalMB float64 `json:"memory_total_mb"`
		NumGC         uint32  `json:"num_gc"`
	} `json:"runtime"`

	WebSocket struct {
		ConnectedClients int `json:"connected_clients"`
	} `json:"websocket"`

	MQTT struct {
		Connected bool `json:"connected"`
	} `json:"mqtt"`

	Database struct {
		OpenConnections int   `json:"open_connections"`
		InUse           int   `json:"in_use"`
		Idle            int   `json:"idle"`
		WaitCount       int64 `json:"wait_count"`
	} `json:"database"`
}

// handleMetrics reports process health: runtime stats, WebSocket client
// count, MQTT connectivity, and database pool usage.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var m systemMetrics
	m.Timestamp = time.Now().UTC().Format(time.RFC3339)
	m.Version = s.version
	m.UptimeSeconds = int64(time.Since(s.startTime).Seconds())

	m.Runtime.Goroutines = runtime.NumGoroutine()
	m.Runtime.MemoryAllocMB = float64(memStats.Alloc) / bytesPerMB
	m.Runtime.MemoryTotalMB = float64(memStats.TotalAlloc) / bytesPerMB
	m.Runtime.NumGC = memStats.NumGC

	// Hub is created on Start; mqtt and db are optional deps.
	if s.hub != nil {
		m.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		m.MQTT.Connected = s.mqtt.IsConnected()
	}
	if s.db != nil {
		stats := s.db.Stats()
		m.Database.OpenConnections = stats.OpenConnections
		m.Database.InUse = stats.InUse
		m.Database.Idle = stats.Idle
		m.Database.WaitCount = stats.WaitCount
	}

	writeJSON(w, http.StatusOK, m)
}
