package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a booking ID does not exist.
	ErrNotFound = errors.New("booking not found")

	// ErrCustomerNotFound is returned when the booking references an
	// unknown customer.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrPastDate is returned when the booking date is before today.
	ErrPastDate = errors.New("booking date is in the past")

	// ErrSlotTaken is returned when the requested slot is already claimed.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrInvalidDate is returned when a date does not parse as 2006-01-02.
	ErrInvalidDate = errors.New("invalid date format")

	// ErrInvalidTime is returned when a time does not parse as 15:04.
	ErrInvalidTime = errors.New("invalid time format")

	// ErrInvalidStatus is returned for an unknown booking status.
	ErrInvalidStatus = errors.New("invalid booking status")
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Date and time layouts used throughout the package.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Booking is a scheduled service visit. Customer and vehicle details are
// snapshotted at creation so the record stays readable if the customer
// changes later.
type Booking struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	VehicleMake   string    `json:"vehicle_make,omitempty"`
	VehicleModel  string    `json:"vehicle_model,omitempty"`
	VehicleYear   string    `json:"vehicle_year,omitempty"`
	ServiceType   string    `json:"service_type"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	EstimatedCost float64   `json:"estimated_cost"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StartTime combines the booking's date and time into a single instant (UTC).
func (b *Booking) StartTime() (time.Time, error) {
	return time.Parse(DateLayout+" "+TimeLayout, b.Date+" "+b.Time)
}

// Slot is one entry in the booking grid. available=false means taken.
type Slot struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
}

// AvailableSlot is one grid entry returned by Service.AvailableSlots.
type AvailableSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// CalendarEntry is a booking shaped for month-view calendar rendering.
type CalendarEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Start        string `json:"start"`
	End          string `json:"end"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	ServiceType  string `json:"service_type"`
	Status       string `json:"status"`
}

// ValidateDate checks a date string against the 2006-01-02 layout.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// ValidateTime checks a time string against the 15:04 layout.
func ValidateTime(t string) error {
	if _, err := time.Parse(TimeLayout, t); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTime, t)
	}
	return nil
}
