// Package settings manages the service catalog and shop configuration.
//
// # Service Catalog
//
// Services are the bookable offerings (oil change, tyre rotation) with a
// duration, price and category. Deleting a service deactivates it rather
// than removing the row, so historic bookings keep their reference.
//
// # Settings Store
//
// A key-value store backs shop-wide configuration: per-weekday working
// hours (JSON), the assistant system prompt, and the default slot duration.
// Defaults are seeded on first run.
package settings
