package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/customer"
	"github.com/shopdesk/shopdesk-core/internal/settings"
)

// CustomerDirectory is the interface the service needs from the customer
// package: existence lookup and visit tracking.
type CustomerDirectory interface {
	GetByID(ctx context.Context, id string) (*customer.Customer, error)
	RecordVisit(ctx context.Context, id string, visitedAt time.Time) error
}

// HoursProvider supplies the shop schedule used to build the slot grid.
type HoursProvider interface {
	WorkingHours(ctx context.Context) (settings.WorkingHours, error)
	SlotDuration(ctx context.Context) (int, error)
}

// ActivityLog records feed entries for booking lifecycle events.
type ActivityLog interface {
	Log(ctx context.Context, a *activity.Activity) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// MetricsWriter records booking volume metrics.
type MetricsWriter interface {
	WriteBookingMetric(serviceType string)
}

// Logger is the minimal logging interface the service requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// calendarEntryDuration is the display length of a booking in the month
// view. Actual slot occupancy is one grid step.
const calendarEntryDuration = 60 * time.Minute

// Service orchestrates the booking workflow over the repository, customer
// directory and slot grid.
//
// hub, metrics and activities may be nil; the corresponding side effects
// are skipped.
type Service struct {
	repo       Repository
	customers  CustomerDirectory
	hours      HoursProvider
	activities ActivityLog
	hub        WSHub
	metrics    MetricsWriter
	logger     Logger
}

// NewService creates a new booking service.
func NewService(repo Repository, customers CustomerDirectory, hours HoursProvider,
	activities ActivityLog, hub WSHub, metrics MetricsWriter, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		repo:       repo,
		customers:  customers,
		hours:      hours,
		activities: activities,
		hub:        hub,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateRequest carries the caller-supplied fields for a new booking.
type CreateRequest struct {
	CustomerID    string  `json:"customer_id"`
	ServiceType   string  `json:"service_type"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	EstimatedCost float64 `json:"estimated_cost"`
	Notes         string  `json:"notes"`
}

// Create books a slot for an existing customer.
//
// The customer must exist, the date must not be in the past, and the slot
// must be free. On success the slot is claimed, a visit is recorded on the
// customer, and booking.created is broadcast.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	if err := ValidateDate(req.Date); err != nil {
		return nil, err
	}
	if err := ValidateTime(req.Time); err != nil {
		return nil, err
	}

	cust, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		if err == customer.ErrNotFound {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("looking up customer: %w", err)
	}

	if req.Date < today() {
		return nil, ErrPastDate
	}

	if err := s.checkSlotFree(ctx, req.Date, req.Time); err != nil {
		return nil, err
	}

	b := &Booking{
		CustomerID:    cust.ID,
		CustomerName:  cust.Name,
		CustomerPhone: cust.Phone,
		VehicleMake:   cust.VehicleMake,
		VehicleModel:  cust.VehicleModel,
		VehicleYear:   cust.VehicleYear,
		ServiceType:   req.ServiceType,
		Date:          req.Date,
		Time:          req.Time,
		EstimatedCost: req.EstimatedCost,
		Status:        StatusPending,
		Notes:         req.Notes,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	if err := s.repo.SetSlotAvailable(ctx, b.Date, b.Time, false); err != nil {
		return nil, err
	}

	if visitAt, err := b.StartTime(); err == nil {
		if err := s.customers.RecordVisit(ctx, cust.ID, visitAt); err != nil {
			s.logger.Warn("recording visit failed", "customer_id", cust.ID, "error", err)
		}
	}

	s.logActivity(ctx, activity.TypeBookingCreated,
		fmt.Sprintf("Booking %s: %s for %s on %s %s", b.ID, b.ServiceType, b.CustomerName, b.Date, b.Time),
		&b.CustomerID)

	if s.hub != nil {
		s.hub.Broadcast("booking.created", b)
	}
	if s.metrics != nil {
		s.metrics.WriteBookingMetric(b.ServiceType)
	}

	s.logger.Info("booking created",
		"booking_id", b.ID, "customer_id", b.CustomerID, "date", b.Date, "time", b.Time)
	return b, nil
}

// UpdateRequest carries optional field updates for a booking. Nil fields
// are left unchanged.
type UpdateRequest struct {
	ServiceType   *string  `json:"service_type,omitempty"`
	Date          *string  `json:"date,omitempty"`
	Time          *string  `json:"time,omitempty"`
	EstimatedCost *float64 `json:"estimated_cost,omitempty"`
	Status        *string  `json:"status,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

// Update applies field changes to a booking. A date or time change
// re-validates the target slot, frees the old one and claims the new one.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newDate, newTime := b.Date, b.Time
	if req.Date != nil {
		if err := ValidateDate(*req.Date); err != nil {
			return nil, err
		}
		newDate = *req.Date
	}
	if req.Time != nil {
		if err := ValidateTime(*req.Time); err != nil {
			return nil, err
		}
		newTime = *req.Time
	}

	if newDate != b.Date || newTime != b.Time {
		if newDate < today() {
			return nil, ErrPastDate
		}
		if err := s.checkSlotFree(ctx, newDate, newTime); err != nil {
			return nil, err
		}
		// Free the old slot, claim the new one.
		if err := s.repo.SetSlotAvailable(ctx, b.Date, b.Time, true); err != nil {
			return nil, err
		}
		if err := s.repo.SetSlotAvailable(ctx, newDate, newTime, false); err != nil {
			return nil, err
		}
		b.Date, b.Time = newDate, newTime
	}

	if req.ServiceType != nil {
		b.ServiceType = *req.ServiceType
	}
	if req.EstimatedCost != nil {
		b.EstimatedCost = *req.EstimatedCost
	}
	if req.Status != nil {
		if !ValidStatus(*req.Status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *req.Status)
		}
		b.Status = *req.Status
	}
	if req.Notes != nil {
		b.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}

	s.logActivity(ctx, activity.TypeBookingUpdated,
		fmt.Sprintf("Booking %s updated (%s %s)", b.ID, b.Date, b.Time), &b.CustomerID)

	if s.hub != nil {
		s.hub.Broadcast("booking.updated", b)
	}

	s.logger.Info("booking updated", "booking_id", b.ID)
	return b, nil
}

// Cancel sets a booking to cancelled and frees its slot.
func (s *Service) Cancel(ctx context.Context, id string) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return err
	}
	if err := s.repo.SetSlotAvailable(ctx, b.Date, b.Time, true); err != nil {
		return err
	}

	s.logActivity(ctx, activity.TypeBookingCancelled,
		fmt.Sprintf("Booking %s cancelled (%s %s)", b.ID, b.Date, b.Time), &b.CustomerID)

	if s.hub != nil {
		b.Status = StatusCancelled
		s.hub.Broadcast("booking.updated", b)
	}

	s.logger.Info("booking cancelled", "booking_id", id)
	return nil
}

// GetByID returns a single booking.
func (s *Service) GetByID(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

// Upcoming returns non-cancelled bookings from today onwards.
func (s *Service) Upcoming(ctx context.Context, limit, offset int) ([]Booking, error) {
	return s.repo.Upcoming(ctx, today(), limit, offset)
}

// ByCustomer returns a customer's booking history.
func (s *Service) ByCustomer(ctx context.Context, customerID string) ([]Booking, error) {
	return s.repo.ByCustomer(ctx, customerID)
}

// Calendar returns the month's bookings shaped for calendar rendering.
func (s *Service) Calendar(ctx context.Context, year, month int) ([]CalendarEntry, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	bookings, err := s.repo.InRange(ctx,
		start.Format(DateLayout), end.Format(DateLayout))
	if err != nil {
		return nil, err
	}

	entries := make([]CalendarEntry, 0, len(bookings))
	for _, b := range bookings {
		startAt, err := b.StartTime()
		if err != nil {
			s.logger.Warn("skipping booking with bad timestamp",
				"booking_id", b.ID, "date", b.Date, "time", b.Time)
			continue
		}
		entries = append(entries, CalendarEntry{
			ID:           b.ID,
			Title:        fmt.Sprintf("%s - %s", b.ServiceType, b.CustomerName),
			Start:        startAt.Format("2006-01-02T15:04:05"),
			End:          startAt.Add(calendarEntryDuration).Format("2006-01-02T15:04:05"),
			CustomerID:   b.CustomerID,
			CustomerName: b.CustomerName,
			ServiceType:  b.ServiceType,
			Status:       b.Status,
		})
	}
	return entries, nil
}

// AvailableSlots returns the booking grid for a date: every step within the
// day's working hours with its availability. A closed day yields an empty
// grid.
func (s *Service) AvailableSlots(ctx context.Context, date string) ([]AvailableSlot, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	day, _ := time.Parse(DateLayout, date) //nolint:errcheck // validated above

	hours := settings.DayHours{Open: "08:00", Close: "18:00"}
	step := settings.DefaultSlotDurationMinutes
	if s.hours != nil {
		wh, err := s.hours.WorkingHours(ctx)
		if err != nil {
			return nil, err
		}
		hours = wh.ForDate(day)
		if step, err = s.hours.SlotDuration(ctx); err != nil {
			return nil, err
		}
	}
	if hours.Closed {
		return []AvailableSlot{}, nil
	}

	taken := make(map[string]bool)
	slots, err := s.repo.SlotsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		if !slot.Available {
			taken[slot.Time] = true
		}
	}

	open, err := time.Parse(TimeLayout, hours.Open)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q", ErrInvalidTime, hours.Open)
	}
	clos, err := time.Parse(TimeLayout, hours.Close)
	if err != nil {
		return nil, fmt.Errorf("%w: close %q", ErrInvalidTime, hours.Close)
	}

	var grid []AvailableSlot
	for t := open; t.Before(clos); t = t.Add(time.Duration(step) * time.Minute) {
		ts := t.Format(TimeLayout)
		grid = append(grid, AvailableSlot{Time: ts, Available: !taken[ts]})
	}
	return grid, nil
}

// checkSlotFree returns ErrSlotTaken when a slot row exists and is claimed.
// A missing row means the slot is free.
func (s *Service) checkSlotFree(ctx context.Context, date, t string) error {
	slot, err := s.repo.GetSlot(ctx, date, t)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if !slot.Available {
		return ErrSlotTaken
	}
	return nil
}

func (s *Service) logActivity(ctx context.Context, typ, msg string, customerID *string) {
	if s.activities == nil {
		return
	}
	a := &activity.Activity{Type: typ, Message: msg, CustomerID: customerID}
	if err := s.activities.Log(ctx, a); err != nil {
		s.logger.Warn("logging activity failed", "type", typ, "error", err)
	}
}

// today returns the current UTC date in the grid's date layout.
func today() string {
	return time.Now().UTC().Format(DateLayout)
}
