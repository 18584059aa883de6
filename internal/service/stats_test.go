package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
)

func booking(status domain.BookingStatus, created time.Time, amount *float64) *domain.Booking {
	return &domain.Booking{ID: created.String(), Status: status, CreatedAt: created, TotalAmount: amount}
}

func TestWeekAndMonthStart(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// Wednesday.
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), weekStart(now))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), monthStart(now))

	// Sunday is its own week start; the week may begin in the previous month.
	sunday := time.Date(2026, 2, 1, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, loc), weekStart(sunday))
	saturday := time.Date(2026, 5, 2, 23, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 4, 26, 0, 0, 0, 0, loc), weekStart(saturday))
}

func TestComputeBookingStatsBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC) // Wednesday
	week := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	items := []*domain.Booking{
		booking(domain.BookingCompleted, week, ptr(40.0)),
		booking(domain.BookingPending, week.Add(-time.Second), nil),
		booking(domain.BookingConfirmed, month, nil),
		booking(domain.BookingCancelled, month.Add(-time.Second), nil),
		booking(domain.BookingCompleted, month.AddDate(0, -2, 0), ptr(60.0)),
	}
	st := computeBookingStats(items, now)

	assert.Equal(t, 5, st.Total)
	assert.Equal(t, st.Total, st.Pending+st.Confirmed+st.Completed+st.Cancelled)
	assert.Equal(t, 2, st.Completed)
	assert.Equal(t, 100.0, st.TotalRevenue)
	assert.Equal(t, 1, st.ThisWeek)
	assert.Equal(t, 40.0, st.WeeklyRevenue)
	assert.Equal(t, 3, st.ThisMonth)
	assert.Equal(t, 40.0, st.MonthlyRevenue)

	empty := computeBookingStats(nil, now)
	assert.Equal(t, &BookingStats{}, empty)
}

func TestComputeListingStats(t *testing.T) {
	assert.Zero(t, computeListingStats([]*domain.Listing{{Status: domain.ListingActive, Rating: 0}}).AverageRating)

	st := computeListingStats([]*domain.Listing{
		{Status: domain.ListingActive, Rating: 5, ReviewCount: 1, Views: 3},
		{Status: domain.ListingPaused, Rating: 3, ReviewCount: 3, Views: 4},
		{Status: domain.ListingInactive, Rating: 4.5},
	})
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 1, st.Paused)
	assert.Equal(t, 1, st.Inactive)
	assert.Equal(t, 7, st.TotalViews)
	assert.Equal(t, 4, st.TotalReviews)
	assert.InDelta(t, 3.5, st.AverageRating, 1e-9)
}

func TestBookingTrendsZeroFilled(t *testing.T) {
	now := time.Date(2026, 3, 30, 1, 0, 0, 0, time.UTC)
	trends := bookingTrends([]*domain.Booking{
		booking(domain.BookingCompleted, now.Add(-2*time.Hour), ptr(25.0)),
		booking(domain.BookingPending, now.AddDate(0, 0, -29), nil),
		booking(domain.BookingPending, now.AddDate(0, 0, -30), nil),
	}, now)

	require.Len(t, trends, 30)
	assert.Equal(t, "2026-03-01", trends[0].Date)
	assert.Equal(t, 1, trends[0].Bookings)
	assert.Equal(t, "2026-03-29", trends[28].Date)
	assert.Equal(t, 1, trends[28].Bookings)
	assert.Equal(t, 25.0, trends[28].Revenue)
	assert.Equal(t, "2026-03-30", trends[29].Date)
	assert.Zero(t, trends[29].Bookings)

	var total int
	for _, p := range trends {
		total += p.Bookings
	}
	assert.Equal(t, 2, total)
}

func TestTopServicesOrdering(t *testing.T) {
	mk := func(id, title string, amount float64) *domain.Booking {
		return &domain.Booking{ServiceID: id, ServiceTitle: title, Status: domain.BookingCompleted, TotalAmount: ptr(amount)}
	}
	items := []*domain.Booking{
		mk("a", "A", 10), mk("b", "B", 50), mk("a", "A", 10),
		mk("c", "", 30), mk("c", "", 30),
		mk("d", "D", 1), mk("e", "E", 2), mk("f", "F", 3),
		{ServiceID: "z", Status: domain.BookingPending},
	}
	top := topServices(items)
	require.Len(t, top, 5)
	assert.Equal(t, "c", top[0].ServiceID)
	assert.Equal(t, unknownService, top[0].Title)
	assert.Equal(t, "a", top[1].ServiceID)
	assert.Equal(t, "b", top[2].ServiceID)
	assert.Equal(t, "f", top[3].ServiceID)
	assert.Equal(t, "e", top[4].ServiceID)
}

func TestResponseRateAndRating(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	within := created.Add(23 * time.Hour)
	late := created.Add(25 * time.Hour)
	convs := []*domain.Conversation{
		{CreatedAt: created, LastMessageAt: &within},
		{CreatedAt: created, LastMessageAt: &late},
		{CreatedAt: created},
	}
	assert.Equal(t, 33, responseRate(convs))
	assert.Equal(t, 100, responseRate(nil))

	assert.Equal(t, 4.3, averageRating([]*domain.Review{{Rating: 5}, {Rating: 4}, {Rating: 4}}))
	assert.Zero(t, averageRating(nil))
}

func TestRecentActivityCapsAtTen(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var bookings []*domain.Booking
	for i := 0; i < 8; i++ {
		bookings = append(bookings, &domain.Booking{
			Status: domain.BookingPending, ServiceTitle: "Plumbing", CustomerFullName: "Cathy",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	reviews := []*domain.Review{
		{Rating: 5, ServiceTitle: "Plumbing", CreatedAt: base.Add(100 * time.Hour)},
		{Rating: 3, ServiceTitle: "Plumbing", CreatedAt: base.Add(-time.Hour)},
		{Rating: 2, ServiceTitle: "Plumbing", CreatedAt: base.Add(-2 * time.Hour)},
	}
	out := recentActivity(bookings, reviews, domain.RoleProvider)
	require.Len(t, out, 10)
	assert.Equal(t, "5 stars for Plumbing", out[0].Description)
	assert.Equal(t, "Plumbing with Cathy", out[1].Description)
	assert.Equal(t, "3 stars for Plumbing", out[9].Description)
	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].Timestamp.After(out[i-1].Timestamp))
	}
}
