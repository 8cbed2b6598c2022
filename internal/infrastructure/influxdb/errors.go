package influxdb

import "errors"

// Sentinel errors, matchable with errors.Is. Most write errors surface
// asynchronously through the batching API's error callback rather than as
// return values.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrWriteFailed      = errors.New("influxdb: write failed")

	// ErrDisabled means the metrics integration is switched off in config;
	// callers should treat it as "run without metrics", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
