package api

import (
	"context"
	"net/http"
	"time"
)

// componentTimeout bounds each dependency check so one slow component
// cannot stall the whole health response.
const componentTimeout = 2 * time.Second

// handleHealth reports overall service health plus per-component status.
//
// The database and object store are required: if either fails the overall
// status is "degraded". MQTT and the metrics backend are optional and only
// reported when configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string)
	status := "ok"

	mark := func(name string, err error) {
		if err != nil {
			components[name] = "error: " + err.Error()
			status = "degraded"
			return
		}
		components[name] = "ok"
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), componentTimeout)
		mark("database", s.db.HealthCheck(ctx))
		cancel()
	}

	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), componentTimeout)
		mark("storage", s.storage.HealthCheck(ctx))
		cancel()
	}

	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			components["mqtt"] = "ok"
		} else {
			// Messaging degrades gracefully; overall status stays "ok"
			components["mqtt"] = "disconnected"
		}
	}

	if s.metrics != nil {
		if s.metrics.IsConnected() {
			components["metrics"] = "ok"
		} else {
			components["metrics"] = "disconnected"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// handleVersion returns version and uptime information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}
