// Package api implements the HTTP REST API and WebSocket server for
// Shopdesk Core.
//
// This package provides:
//   - REST endpoints for customers, bookings, documents, messages,
//     activity, settings and dashboard views
//   - WebSocket hub for real-time event broadcasts
//   - JWT authentication with refresh-token rotation and ticket-based
//     WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit,
//     metrics, rate limiting, API key, JWT)
//   - TLS support for production deployments
//
// # Security
//
// Every request must carry the configured X-API-Key (service-level gate,
// checked before anything user-specific). User authentication is JWT:
// short-lived access tokens validated by signature, long-lived refresh
// tokens stored hashed with family-based theft detection. WebSocket
// connections use single-use tickets so tokens never appear in URLs.
//
// # Graceful Degradation
//
// The server operates without MQTT and InfluxDB: messaging send/receive
// and request metrics degrade, everything else keeps working. Object
// storage is required for document routes only.
package api
