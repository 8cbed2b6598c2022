package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/shopdesk-core/internal/booking"
)

// handleListBookings returns upcoming bookings (paginated).
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	bookings, err := s.bookings.Upcoming(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list bookings failed", "error", err)
		writeInternalError(w, "failed to list bookings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": bookings,
		"count":    len(bookings),
		"limit":    limit,
		"offset":   offset,
	})
}

// handleCreateBooking books a slot for an existing customer.
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	b, err := s.bookings.Create(r.Context(), req)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

// handleBookingCalendar returns per-day booking summaries for a month.
func (s *Server) handleBookingCalendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year := queryInt(r, "year", now.Year())
	month := queryInt(r, "month", int(now.Month()))

	if month < 1 || month > 12 {
		writeBadRequest(w, "month must be between 1 and 12")
		return
	}

	entries, err := s.bookings.Calendar(r.Context(), year, month)
	if err != nil {
		s.logger.Error("booking calendar failed", "year", year, "month", month, "error", err)
		writeInternalError(w, "failed to build calendar")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"month": month,
		"days":  entries,
	})
}

// handleAvailableSlots returns free slots for a date, derived from working
// hours and existing bookings.
func (s *Server) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeBadRequest(w, "date query parameter is required")
		return
	}

	slots, err := s.bookings.AvailableSlots(r.Context(), date)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidDate) {
			writeBadRequest(w, "date must be in YYYY-MM-DD format")
			return
		}
		s.logger.Error("available slots failed", "date", date, "error", err)
		writeInternalError(w, "failed to compute available slots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"slots": slots,
	})
}

// handleGetBooking returns a single booking by ID.
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := s.bookings.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeNotFound(w, "booking not found")
			return
		}
		s.logger.Error("get booking failed", "booking_id", id, "error", err)
		writeInternalError(w, "failed to get booking")
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// handleUpdateBooking patches a booking; date/time changes re-validate the slot.
func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req booking.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	b, err := s.bookings.Update(r.Context(), id, req)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// handleCancelBooking cancels a booking and frees its slot.
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.bookings.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeNotFound(w, "booking not found")
			return
		}
		s.logger.Error("cancel booking failed", "booking_id", id, "error", err)
		writeInternalError(w, "failed to cancel booking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// writeBookingError maps booking service errors onto HTTP responses.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeNotFound(w, "booking not found")
	case errors.Is(err, booking.ErrCustomerNotFound):
		writeNotFound(w, "customer not found")
	case errors.Is(err, booking.ErrSlotTaken):
		writeConflict(w, "slot already taken")
	case errors.Is(err, booking.ErrPastDate):
		writeConflict(w, "booking date is in the past")
	case errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidTime),
		errors.Is(err, booking.ErrInvalidStatus):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, "booking operation failed")
	}
}
