package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteRequestMetric records one handled HTTP request. Called from the API
// metrics middleware; path is the route pattern rather than the raw URL so
// tag cardinality stays bounded.
func (c *Client) WriteRequestMetric(method, path string, status int, durationMs float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"http_requests",
		map[string]string{
			"method": method,
			"path":   path,
			"status": strconv.Itoa(status),
		},
		map[string]any{"duration_ms": durationMs},
		time.Now(),
	))
}

// WriteBookingMetric records a booking creation event for volume tracking,
// tagged by service type (e.g. "oil_change").
func (c *Client) WriteBookingMetric(serviceType string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"bookings",
		map[string]string{"service_type": serviceType},
		map[string]any{"count": 1},
		time.Now(),
	))
}

// WritePoint writes a custom measurement. Keep tags low-cardinality; put the
// data itself in fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime is WritePoint with an explicit timestamp, for data that
// arrives late.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
