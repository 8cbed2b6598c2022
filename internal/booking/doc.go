// Package booking manages service bookings and the slot calendar.
//
// # Slots
//
// A slot is one (date, time) pair in the booking grid. Rows are created
// lazily: the grid is derived from the shop's working hours, and a slot
// row only exists once a booking has claimed it (available=0) or freed it
// again (available=1). Cancelling or rescheduling a booking releases its
// slot.
//
// # Workflow
//
// Creating a booking verifies the customer exists, rejects past dates,
// claims the slot, snapshots customer and vehicle details onto the booking,
// and records a visit on the customer. WebSocket events and booking metrics
// are emitted when the respective sinks are wired.
package booking
