// Package dashboard assembles the read-only stats views shown on the
// landing screen: headline customer and booking counts, the recent
// activity feed, and revenue charts bucketed by period.
//
// It owns no tables of its own; everything is aggregated from the
// customer, booking and activity repositories through small consumer
// interfaces.
package dashboard
