// Package customer manages the customer directory for Shopdesk Core.
//
// Each customer is keyed by phone number (unique across the shop) and
// carries vehicle details plus visit tracking (last visit, total visits).
// Visit counts are maintained by the booking workflow via RecordVisit.
package customer
