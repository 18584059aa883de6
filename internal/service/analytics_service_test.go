package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/service"
)

func TestDashboard(t *testing.T) {
	f := newBookingFixture(t, quietNotifier())
	ctx := context.Background()
	reviews := service.NewReviewService(f.repos.Reviews, f.repos.Bookings, f.repos.Listings, nil)
	analytics := service.NewAnalyticsService(f.repos)

	second := seedListing(t, f.repos, f.provider.ID, "Gutter Cleaning")
	require.NoError(t, f.repos.Listings.UpdateStatus(ctx, second.ID, domain.ListingInactive))

	pending := f.book(t)
	done := f.book(t)
	amount := 120.0
	_, err := f.svc.UpdateStatus(ctx, done.ID, f.provider.ID, domain.BookingCompleted, &amount)
	require.NoError(t, err)
	_, err = reviews.Create(ctx, f.customer.ID, done.ID, service.ReviewInput{Rating: 4})
	require.NoError(t, err)

	d, err := analytics.Dashboard(ctx, f.provider.ID, domain.RoleProvider)
	require.NoError(t, err)

	assert.Equal(t, 2, d.TotalBookings)
	assert.Equal(t, 120.0, d.TotalRevenue)
	assert.Equal(t, 1, d.CompletedJobs)
	assert.Equal(t, 1, d.PendingBookings)
	assert.Equal(t, 2, d.MonthlyBookings)
	assert.Equal(t, 2, d.TotalServices)
	assert.Equal(t, 1, d.ActiveServices)
	assert.Equal(t, 4.0, d.AverageRating)
	assert.Equal(t, 100, d.ResponseRate)

	require.Len(t, d.BookingTrends, 30)
	today := d.BookingTrends[29]
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), today.Date)
	assert.Equal(t, 2, today.Bookings)
	assert.Equal(t, 120.0, today.Revenue)

	require.Len(t, d.TopServices, 1)
	assert.Equal(t, f.listing.ID, d.TopServices[0].ServiceID)
	assert.Equal(t, "Plumbing", d.TopServices[0].Title)
	assert.Equal(t, 1, d.TopServices[0].BookingCount)

	assert.Equal(t, []service.RatingCount{
		{Rating: 1}, {Rating: 2}, {Rating: 3}, {Rating: 4, Count: 1}, {Rating: 5},
	}, d.RatingDistribution)

	require.Len(t, d.RecentActivity, 3)
	assert.Equal(t, "review", d.RecentActivity[0].Type)
	assert.Equal(t, "Review received", d.RecentActivity[0].Title)
	assert.Equal(t, "4 stars for Plumbing", d.RecentActivity[0].Description)
	assert.Equal(t, "Booking completed", d.RecentActivity[1].Title)
	assert.Equal(t, "Plumbing with cathy", d.RecentActivity[1].Description)
	assert.Equal(t, "Booking "+string(pending.Status), d.RecentActivity[2].Title)

	t.Run("Customer", func(t *testing.T) {
		d, err := analytics.Dashboard(ctx, f.customer.ID, domain.RoleCustomer)
		require.NoError(t, err)
		assert.Equal(t, 2, d.TotalBookings)
		assert.Zero(t, d.TotalServices)
		assert.Empty(t, d.TopServices)
		assert.Equal(t, "Review left", d.RecentActivity[0].Title)
		assert.Equal(t, "Plumbing with pete", d.RecentActivity[1].Description)
	})

	t.Run("Empty", func(t *testing.T) {
		stranger := seedProfile(t, f.repos, "sam", domain.RoleCustomer)
		d, err := analytics.Dashboard(ctx, stranger.ID, domain.RoleCustomer)
		require.NoError(t, err)
		assert.Zero(t, d.TotalBookings)
		assert.Zero(t, d.AverageRating)
		assert.Equal(t, 100, d.ResponseRate)
		assert.Len(t, d.BookingTrends, 30)
		assert.Empty(t, d.RecentActivity)
	})

	t.Run("InvalidRole", func(t *testing.T) {
		_, err := analytics.Dashboard(ctx, f.customer.ID, "admin")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
