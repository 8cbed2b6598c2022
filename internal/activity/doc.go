// Package activity records the shop's activity feed: customer creation,
// booking changes, document uploads. Entries are append-only and surfaced
// on the dashboard.
package activity
