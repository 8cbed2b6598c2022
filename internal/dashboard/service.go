package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/booking"
)

// Revenue chart periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

const newCustomerWindow = 30 * 24 * time.Hour

// CustomerStats is the slice of the customer repository the dashboard reads.
type CustomerStats interface {
	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	CountWithMinVisits(ctx context.Context, minVisits int) (int, error)
}

// BookingStats is the slice of the booking repository the dashboard reads.
type BookingStats interface {
	CountUpcoming(ctx context.Context, today string) (int, error)
	CompletedCostInRange(ctx context.Context, startDate, endDate string) ([]booking.CostRow, error)
}

// ActivityFeed supplies the recent activity list.
type ActivityFeed interface {
	Recent(ctx context.Context, limit int) ([]activity.Activity, error)
}

// Stats is the headline figure block.
type Stats struct {
	TotalCustomers      int    `json:"total_customers"`
	NewCustomers        int    `json:"new_customers"`
	ReturningPercentage string `json:"returning_percentage"`
	UpcomingBookings    int    `json:"upcoming_bookings"`
}

// RevenuePoint is one chart bucket.
type RevenuePoint struct {
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// RevenueStats is a revenue chart for one period.
type RevenueStats struct {
	Period       string         `json:"period"`
	TotalRevenue float64        `json:"total_revenue"`
	Chart        []RevenuePoint `json:"chart"`
}

// Service aggregates dashboard views. now is injectable for tests.
type Service struct {
	customers  CustomerStats
	bookings   BookingStats
	activities ActivityFeed
	now        func() time.Time
}

// NewService creates a dashboard service over the given repositories.
func NewService(customers CustomerStats, bookings BookingStats, activities ActivityFeed) *Service {
	return &Service{
		customers:  customers,
		bookings:   bookings,
		activities: activities,
		now:        time.Now,
	}
}

// Stats returns the headline figures. The returning percentage counts
// customers with at least two recorded visits against the total.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.customers.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting customers: %w", err)
	}
	newCustomers, err := s.customers.CountSince(ctx, s.now().Add(-newCustomerWindow))
	if err != nil {
		return nil, fmt.Errorf("counting new customers: %w", err)
	}
	repeat, err := s.customers.CountWithMinVisits(ctx, 2) //nolint:mnd // second visit makes a returning customer
	if err != nil {
		return nil, fmt.Errorf("counting returning customers: %w", err)
	}
	upcoming, err := s.bookings.CountUpcoming(ctx, s.now().Format(booking.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("counting upcoming bookings: %w", err)
	}

	returning := "0%"
	if total > 0 {
		returning = fmt.Sprintf("%.0f%%", float64(repeat)/float64(total)*100) //nolint:mnd
	}
	return &Stats{
		TotalCustomers:      total,
		NewCustomers:        newCustomers,
		ReturningPercentage: returning,
		UpcomingBookings:    upcoming,
	}, nil
}

// RecentActivity returns the latest feed entries, newest first.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]activity.Activity, error) {
	return s.activities.Recent(ctx, limit)
}

// Revenue builds the revenue chart for a period. Unknown periods fall
// back to month. Buckets are labelled by weekday for week, day-of-month
// for month, and month name for year; each bucket carries the summed
// revenue and the booking count that produced it.
func (s *Service) Revenue(ctx context.Context, period string) (*RevenueStats, error) {
	today := s.now()
	var start time.Time
	var label string
	switch period {
	case PeriodWeek:
		start = today.AddDate(0, 0, -7)
		label = "Mon"
	case PeriodYear:
		start = time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location())
		label = "Jan"
	case PeriodMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		label = "02"
	default:
		period = PeriodMonth
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		label = "02"
	}

	rows, err := s.bookings.CompletedCostInRange(ctx,
		start.Format(booking.DateLayout), today.Format(booking.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("querying revenue: %w", err)
	}

	stats := &RevenueStats{Period: period, Chart: []RevenuePoint{}}
	index := map[string]int{}
	for _, row := range rows {
		day, err := time.Parse(booking.DateLayout, row.Date)
		if err != nil {
			continue
		}
		bucket := day.Format(label)
		i, ok := index[bucket]
		if !ok {
			i = len(stats.Chart)
			index[bucket] = i
			stats.Chart = append(stats.Chart, RevenuePoint{Label: bucket})
		}
		stats.Chart[i].Revenue += row.Cost
		stats.Chart[i].Count++
		stats.TotalRevenue += row.Cost
	}
	return stats, nil
}
