package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/customer"
	"github.com/shopdesk/shopdesk-core/internal/settings"
)

// fixedHours serves a static schedule without a settings table.
type fixedHours struct {
	wh   settings.WorkingHours
	step int
}

func (f *fixedHours) WorkingHours(context.Context) (settings.WorkingHours, error) {
	return f.wh, nil
}

func (f *fixedHours) SlotDuration(context.Context) (int, error) {
	return f.step, nil
}

type wsBroadcast struct {
	Channel string
	Payload any
}

type mockWSHub struct {
	mu         sync.Mutex
	broadcasts []wsBroadcast
}

func (m *mockWSHub) Broadcast(channel string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, wsBroadcast{Channel: channel, Payload: payload})
}

func (m *mockWSHub) getBroadcasts() []wsBroadcast {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]wsBroadcast, len(m.broadcasts))
	copy(cpy, m.broadcasts)
	return cpy
}

type mockMetrics struct {
	mu       sync.Mutex
	services []string
}

func (m *mockMetrics) WriteBookingMetric(serviceType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, serviceType)
}

func newTestService(t *testing.T) (*Service, *customer.SQLiteRepository, *activity.SQLiteRepository, *mockWSHub, *mockMetrics) {
	t.Helper()

	db := testDB(t)
	repo := NewRepository(db)
	customers := customer.NewRepository(db)
	activities := activity.NewRepository(db)
	hub := &mockWSHub{}
	metrics := &mockMetrics{}
	hours := &fixedHours{wh: settings.DefaultWorkingHours(), step: 30}

	svc := NewService(repo, customers, hours, activities, hub, metrics, noopLogger{})
	return svc, customers, activities, hub, metrics
}

func seedServiceCustomer(t *testing.T, customers *customer.SQLiteRepository) *customer.Customer {
	t.Helper()
	c := &customer.Customer{
		Phone:        "+15550001234",
		Name:         "Grace Field",
		VehicleMake:  "Ford",
		VehicleModel: "Focus",
		VehicleYear:  "2020",
	}
	if err := customers.Create(context.Background(), c); err != nil {
		t.Fatalf("seeding customer: %v", err)
	}
	return c
}

func TestService_Create(t *testing.T) {
	svc, customers, activities, hub, metrics := newTestService(t)
	ctx := context.Background()
	c := seedServiceCustomer(t, customers)

	// 2030-06-17 is a Monday
	b, err := svc.Create(ctx, CreateRequest{
		CustomerID:    c.ID,
		ServiceType:   "oil_change",
		Date:          "2030-06-17",
		Time:          "10:00",
		EstimatedCost: 50,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Snapshot fields come from the customer record.
	if b.CustomerName != "Grace Field" || b.CustomerPhone != "+15550001234" {
		t.Errorf("snapshot = %s/%s, want Grace Field/+15550001234",
			b.CustomerName, b.CustomerPhone)
	}
	if b.VehicleMake != "Ford" {
		t.Errorf("VehicleMake = %q, want Ford", b.VehicleMake)
	}
	if b.Status != StatusPending {
		t.Errorf("Status = %q, want pending", b.Status)
	}

	// Slot is claimed.
	if _, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "detailing", Date: "2030-06-17", Time: "10:00",
	}); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("second booking error = %v, want ErrSlotTaken", err)
	}

	// Visit recorded on the customer.
	got, _ := customers.GetByID(ctx, c.ID)
	if got.TotalVisits != 1 {
		t.Errorf("TotalVisits = %d, want 1", got.TotalVisits)
	}
	if got.LastVisit == nil {
		t.Error("LastVisit should be set after booking")
	}

	// Broadcast and metric emitted.
	broadcasts := hub.getBroadcasts()
	if len(broadcasts) == 0 || broadcasts[0].Channel != "booking.created" {
		t.Errorf("broadcasts = %v, want booking.created first", broadcasts)
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.services) != 1 || metrics.services[0] != "oil_change" {
		t.Errorf("metrics = %v, want [oil_change]", metrics.services)
	}

	// Activity logged.
	feed, err := activities.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(feed) != 1 || feed[0].Type != activity.TypeBookingCreated {
		t.Errorf("feed = %v, want single booking_created entry", feed)
	}
}

func TestService_Create_Errors(t *testing.T) {
	svc, customers, _, _, _ := newTestService(t)
	ctx := context.Background()
	c := seedServiceCustomer(t, customers)

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{"unknown customer", CreateRequest{CustomerID: "cust-nope", Date: "2030-06-17", Time: "10:00"}, ErrCustomerNotFound},
		{"past date", CreateRequest{CustomerID: c.ID, Date: "2020-01-01", Time: "10:00"}, ErrPastDate},
		{"bad date", CreateRequest{CustomerID: c.ID, Date: "17/06/2030", Time: "10:00"}, ErrInvalidDate},
		{"bad time", CreateRequest{CustomerID: c.ID, Date: "2030-06-17", Time: "10am"}, ErrInvalidTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Update_Reschedule(t *testing.T) {
	svc, customers, _, hub, _ := newTestService(t)
	ctx := context.Background()
	c := seedServiceCustomer(t, customers)

	b, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "oil_change", Date: "2030-06-17", Time: "10:00",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	newTime := "14:30"
	updated, err := svc.Update(ctx, b.ID, UpdateRequest{Time: &newTime})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Time != "14:30" {
		t.Errorf("Time = %q, want 14:30", updated.Time)
	}

	// Old slot freed: a new booking can take 10:00.
	if _, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "detailing", Date: "2030-06-17", Time: "10:00",
	}); err != nil {
		t.Errorf("rebooking freed slot error = %v", err)
	}

	// New slot claimed.
	if _, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "detailing", Date: "2030-06-17", Time: "14:30",
	}); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("claimed slot error = %v, want ErrSlotTaken", err)
	}

	var sawUpdate bool
	for _, bc := range hub.getBroadcasts() {
		if bc.Channel == "booking.updated" {
			sawUpdate = true
		}
	}
	if !sawUpdate {
		t.Error("expected booking.updated broadcast")
	}
}

func TestService_Update_InvalidStatus(t *testing.T) {
	svc, customers, _, _, _ := newTestService(t)
	ctx := context.Background()
	c := seedServiceCustomer(t, customers)

	b, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "oil_change", Date: "2030-06-17", Time: "10:00",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	bad := "teleported"
	if _, err := svc.Update(ctx, b.ID, UpdateRequest{Status: &bad}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("error = %v, want ErrInvalidStatus", err)
	}
}

func TestService_Cancel(t *testing.T) {
	svc, customers, _, _, _ := newTestService(t)
	ctx := context.Background()
	c := seedServiceCustomer(t, customers)

	b, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "oil_change", Date: "2030-06-17", Time: "10:00",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Cancel(ctx, b.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	got, _ := svc.GetByID(ctx, b.ID)
	if got.Status != StatusCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}

	// Slot released: rebooking the same time succeeds.
	if _, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "detailing", Date: "2030-06-17", Time: "10:00",
	}); err != nil {
		t.Errorf("rebooking cancelled slot error = %v", err)
	}

	if err := svc.Cancel(ctx, "bkg-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel(missing) error = %v, want ErrNotFound", err)
	}
}

func TestService_Calendar(t *testing.T) {
	svc, customers, _, _, _ := newTestService(t)
	ctx := context.Background()
	c := seedServiceCustomer(t, customers)

	for _, dt := range []struct{ date, time string }{
		{"2030-06-17", "10:00"},
		{"2030-06-20", "14:00"},
		{"2030-07-01", "09:00"}, // next month, excluded
	} {
		if _, err := svc.Create(ctx, CreateRequest{
			CustomerID: c.ID, ServiceType: "oil_change", Date: dt.date, Time: dt.time,
		}); err != nil {
			t.Fatalf("Create(%s) error = %v", dt.date, err)
		}
	}

	entries, err := svc.Calendar(ctx, 2030, 6)
	if err != nil {
		t.Fatalf("Calendar() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Calendar(June) returned %d entries, want 2", len(entries))
	}
	if entries[0].Start != "2030-06-17T10:00:00" {
		t.Errorf("Start = %q, want 2030-06-17T10:00:00", entries[0].Start)
	}
	if entries[0].End != "2030-06-17T11:00:00" {
		t.Errorf("End = %q, want 2030-06-17T11:00:00", entries[0].End)
	}
	if entries[0].Title != "oil_change - Grace Field" {
		t.Errorf("Title = %q", entries[0].Title)
	}

	if _, err := svc.Calendar(ctx, 2030, 13); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Calendar(month 13) error = %v, want ErrInvalidDate", err)
	}
}

func TestService_AvailableSlots(t *testing.T) {
	svc, customers, _, _, _ := newTestService(t)
	ctx := context.Background()
	c := seedServiceCustomer(t, customers)

	// Claim one slot. 2030-06-17 is a Monday (open 08:00-18:00).
	if _, err := svc.Create(ctx, CreateRequest{
		CustomerID: c.ID, ServiceType: "oil_change", Date: "2030-06-17", Time: "10:00",
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	grid, err := svc.AvailableSlots(ctx, "2030-06-17")
	if err != nil {
		t.Fatalf("AvailableSlots() error = %v", err)
	}

	// 08:00-18:00 at 30-minute steps = 20 entries.
	if len(grid) != 20 {
		t.Fatalf("grid has %d entries, want 20", len(grid))
	}
	if grid[0].Time != "08:00" || grid[len(grid)-1].Time != "17:30" {
		t.Errorf("grid spans %s..%s, want 08:00..17:30", grid[0].Time, grid[len(grid)-1].Time)
	}

	for _, slot := range grid {
		want := slot.Time != "10:00"
		if slot.Available != want {
			t.Errorf("slot %s available = %v, want %v", slot.Time, slot.Available, want)
		}
	}
}

func TestService_AvailableSlots_ClosedDay(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	// 2030-06-16 is a Sunday (closed by default).
	grid, err := svc.AvailableSlots(context.Background(), "2030-06-16")
	if err != nil {
		t.Fatalf("AvailableSlots() error = %v", err)
	}
	if len(grid) != 0 {
		t.Errorf("closed day grid has %d entries, want 0", len(grid))
	}
}
