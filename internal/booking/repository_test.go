package booking

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the booking schema plus
// the customers table the FK references.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "booking-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE customers (
			id TEXT PRIMARY KEY,
			phone TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			vehicle_make TEXT,
			vehicle_model TEXT,
			vehicle_year TEXT,
			last_visit TEXT,
			total_visits INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE bookings (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			vehicle_make TEXT NOT NULL DEFAULT '',
			vehicle_model TEXT NOT NULL DEFAULT '',
			vehicle_year TEXT NOT NULL DEFAULT '',
			service_type TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			estimated_cost REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_bookings_date ON bookings(date);

		CREATE TABLE slots (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			available INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			UNIQUE (date, time)
		) STRICT;

		CREATE TABLE activities (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			customer_id TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying booking migration: %v", err)
	}

	return db
}

func seedDBCustomer(t *testing.T, db *sql.DB, id, phone, name string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO customers (id, phone, name, vehicle_make, vehicle_model, vehicle_year)
		 VALUES (?, ?, ?, 'Ford', 'Focus', '2020')`, id, phone, name)
	if err != nil {
		t.Fatalf("seeding customer: %v", err)
	}
}

func testBooking(customerID, date, timeStr string) *Booking {
	return &Booking{
		CustomerID:    customerID,
		CustomerName:  "Test Customer",
		CustomerPhone: "+15550001234",
		ServiceType:   "oil_change",
		Date:          date,
		Time:          timeStr,
		EstimatedCost: 50,
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedDBCustomer(t, db, "cust-1", "+15550001234", "Test Customer")

	b := testBooking("cust-1", "2030-06-15", "10:00")
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if b.ID == "" {
		t.Fatal("Create() should generate an ID")
	}
	if b.Status != StatusPending {
		t.Errorf("Status = %q, want pending", b.Status)
	}

	got, err := repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Date != "2030-06-15" || got.Time != "10:00" {
		t.Errorf("slot = %s %s, want 2030-06-15 10:00", got.Date, got.Time)
	}
	if got.ServiceType != "oil_change" {
		t.Errorf("ServiceType = %q, want oil_change", got.ServiceType)
	}
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	_, err := repo.GetByID(context.Background(), "bkg-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRepository_Upcoming(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedDBCustomer(t, db, "cust-1", "+15550001234", "Test Customer")

	dates := []string{"2030-01-05", "2030-01-03", "2030-01-04"}
	for _, d := range dates {
		if err := repo.Create(ctx, testBooking("cust-1", d, "09:00")); err != nil {
			t.Fatalf("Create(%s) error = %v", d, err)
		}
	}

	// A cancelled booking must not appear.
	cancelled := testBooking("cust-1", "2030-01-06", "09:00")
	cancelled.Status = StatusCancelled
	if err := repo.Create(ctx, cancelled); err != nil {
		t.Fatalf("Create(cancelled) error = %v", err)
	}

	got, err := repo.Upcoming(ctx, "2030-01-01", 10, 0)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Upcoming() returned %d bookings, want 3", len(got))
	}
	if got[0].Date != "2030-01-03" || got[2].Date != "2030-01-05" {
		t.Errorf("order = [%s..%s], want soonest first", got[0].Date, got[2].Date)
	}

	// Cutoff excludes earlier dates.
	got, err = repo.Upcoming(ctx, "2030-01-04", 10, 0)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Upcoming(from 01-04) returned %d, want 2", len(got))
	}

	count, err := repo.CountUpcoming(ctx, "2030-01-01")
	if err != nil {
		t.Fatalf("CountUpcoming() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountUpcoming() = %d, want 3 (cancelled excluded)", count)
	}
}

func TestRepository_InRange(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedDBCustomer(t, db, "cust-1", "+15550001234", "Test Customer")

	for _, d := range []string{"2030-03-31", "2030-04-01", "2030-04-30", "2030-05-01"} {
		if err := repo.Create(ctx, testBooking("cust-1", d, "09:00")); err != nil {
			t.Fatalf("Create(%s) error = %v", d, err)
		}
	}

	got, err := repo.InRange(ctx, "2030-04-01", "2030-04-30")
	if err != nil {
		t.Fatalf("InRange() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("InRange(April) returned %d bookings, want 2", len(got))
	}
}

func TestRepository_UpdateStatus(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedDBCustomer(t, db, "cust-1", "+15550001234", "Test Customer")

	b := testBooking("cust-1", "2030-06-15", "10:00")
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.UpdateStatus(ctx, b.ID, StatusConfirmed); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, b.ID)
	if got.Status != StatusConfirmed {
		t.Errorf("Status = %q, want confirmed", got.Status)
	}

	if err := repo.UpdateStatus(ctx, "bkg-missing", StatusConfirmed); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_CompletedCostInRange(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedDBCustomer(t, db, "cust-1", "+15550001234", "Test Customer")

	entries := []struct {
		date   string
		cost   float64
		status string
	}{
		{"2030-04-01", 100, StatusCompleted},
		{"2030-04-02", 50, StatusConfirmed},
		{"2030-04-03", 75, StatusPending},   // excluded
		{"2030-04-04", 25, StatusCancelled}, // excluded
	}
	for _, e := range entries {
		b := testBooking("cust-1", e.date, "09:00")
		b.EstimatedCost = e.cost
		b.Status = e.status
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("Create(%s) error = %v", e.date, err)
		}
	}

	rows, err := repo.CompletedCostInRange(ctx, "2030-04-01", "2030-04-30")
	if err != nil {
		t.Fatalf("CompletedCostInRange() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("returned %d rows, want 2", len(rows))
	}
	var total float64
	for _, r := range rows {
		total += r.Cost
	}
	if total != 150 {
		t.Errorf("total revenue = %.2f, want 150", total)
	}
}

func TestRepository_Slots(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// No row yet: slot is unknown, treated as free.
	_, err := repo.GetSlot(ctx, "2030-06-15", "10:00")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSlot(empty) error = %v, want ErrNotFound", err)
	}

	// Claim it.
	if err := repo.SetSlotAvailable(ctx, "2030-06-15", "10:00", false); err != nil {
		t.Fatalf("SetSlotAvailable() error = %v", err)
	}
	slot, err := repo.GetSlot(ctx, "2030-06-15", "10:00")
	if err != nil {
		t.Fatalf("GetSlot() error = %v", err)
	}
	if slot.Available {
		t.Error("slot should be taken after claim")
	}

	// Free it again: upsert flips the same row.
	if err := repo.SetSlotAvailable(ctx, "2030-06-15", "10:00", true); err != nil {
		t.Fatalf("SetSlotAvailable(free) error = %v", err)
	}
	freed, _ := repo.GetSlot(ctx, "2030-06-15", "10:00")
	if !freed.Available {
		t.Error("slot should be free after release")
	}
	if freed.ID != slot.ID {
		t.Error("upsert should reuse the existing slot row")
	}

	slots, err := repo.SlotsForDate(ctx, "2030-06-15")
	if err != nil {
		t.Fatalf("SlotsForDate() error = %v", err)
	}
	if len(slots) != 1 {
		t.Errorf("SlotsForDate() returned %d rows, want 1", len(slots))
	}
}
