package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrServiceNotFound is returned when a service ID does not exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrKeyNotFound is returned when a settings key does not exist.
	ErrKeyNotFound = errors.New("settings key not found")

	// ErrInvalidService is returned when a service fails validation.
	ErrInvalidService = errors.New("invalid service")

	// ErrInvalidWorkingHours is returned when a working-hours update fails
	// validation.
	ErrInvalidWorkingHours = errors.New("invalid working hours")
)

// Service is a bookable offering in the shop's catalog.
type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price"`
	Category        string    `json:"category,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate validates a service before persistence.
func (s *Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidService)
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidService)
	}
	if s.Price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidService)
	}
	return nil
}

// DayHours describes opening hours for a single weekday.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// WorkingHours maps lowercase weekday names to opening hours.
type WorkingHours map[string]DayHours

// Weekday keys in week order.
var weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// DefaultWorkingHours returns the seed schedule: 08:00-18:00 Monday to
// Saturday, closed Sunday.
func DefaultWorkingHours() WorkingHours {
	wh := make(WorkingHours, len(weekdays))
	for _, day := range weekdays {
		if day == "sunday" {
			wh[day] = DayHours{Closed: true}
			continue
		}
		wh[day] = DayHours{Open: "08:00", Close: "18:00"}
	}
	return wh
}

// ForDate returns the hours for the weekday of the given date.
func (wh WorkingHours) ForDate(date time.Time) DayHours {
	day := strings.ToLower(date.Weekday().String())
	if h, ok := wh[day]; ok {
		return h
	}
	return DayHours{Closed: true}
}

// Validate checks that every entry names a real weekday and carries
// parseable open/close times when not closed.
func (wh WorkingHours) Validate() error {
	for day, h := range wh {
		if !isWeekday(day) {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidWorkingHours, day)
		}
		if h.Closed {
			continue
		}
		open, err := time.Parse("15:04", h.Open)
		if err != nil {
			return fmt.Errorf("%w: %s open time %q", ErrInvalidWorkingHours, day, h.Open)
		}
		clos, err := time.Parse("15:04", h.Close)
		if err != nil {
			return fmt.Errorf("%w: %s close time %q", ErrInvalidWorkingHours, day, h.Close)
		}
		if !clos.After(open) {
			return fmt.Errorf("%w: %s closes before it opens", ErrInvalidWorkingHours, day)
		}
	}
	return nil
}

func isWeekday(s string) bool {
	for _, d := range weekdays {
		if d == s {
			return true
		}
	}
	return false
}

// DefaultSystemPrompt is the assistant prompt seeded on first run.
const DefaultSystemPrompt = "You are a helpful assistant that provides information about automotive services."

// DefaultSlotDurationMinutes is the booking grid step seeded on first run.
const DefaultSlotDurationMinutes = 30
