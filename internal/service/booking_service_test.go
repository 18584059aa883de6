package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/notify"
	"servicehub/internal/service"
)

type bookingFixture struct {
	repos    domain.Repositories
	svc      *service.BookingService
	convs    *service.ConversationService
	notifier *MockNotifier
	pub      *recorder
	customer *domain.Profile
	provider *domain.Profile
	listing  *domain.Listing
}

func newBookingFixture(t *testing.T, notifier *MockNotifier) *bookingFixture {
	t.Helper()
	repos := openRepos(t)
	pub := &recorder{}
	convs := service.NewConversationService(repos.Conversations, repos.Messages, repos.Profiles, nil, pub)
	provider := seedProfile(t, repos, "pete", domain.RoleProvider)
	return &bookingFixture{
		repos:    repos,
		svc:      service.NewBookingService(repos.Bookings, repos.Listings, repos.Profiles, convs, notifier, pub),
		convs:    convs,
		notifier: notifier,
		pub:      pub,
		customer: seedProfile(t, repos, "cathy", domain.RoleCustomer),
		provider: provider,
		listing:  seedListing(t, repos, provider.ID, "Plumbing"),
	}
}

func (f *bookingFixture) input() service.BookingInput {
	return service.BookingInput{
		ServiceID:      f.listing.ID,
		BookingDate:    "2026-03-01",
		BookingTime:    "10:00",
		CustomerName:   "Cathy",
		CustomerPhone:  "555-0100",
		CustomerEmail:  "cathy@example.com",
		ServiceAddress: "1 Main St",
	}
}

func (f *bookingFixture) book(t *testing.T) *domain.Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), f.customer.ID, f.input())
	require.NoError(t, err)
	return b
}

func TestBookingCreate(t *testing.T) {
	notifier := &MockNotifier{}
	f := newBookingFixture(t, notifier)
	ctx := context.Background()

	notifier.On("BookingEvent", mock.Anything, mock.MatchedBy(func(n notify.BookingNotification) bool {
		return n.Event == notify.EventBookingCreated && n.Envelope.To == "pete@example.com"
	})).Return(nil).Once()

	b := f.book(t)
	notifier.AssertExpectations(t)

	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.UrgencyNormal, b.Urgency)
	assert.Equal(t, f.provider.ID, b.ProviderID)
	assert.Equal(t, "Plumbing", b.ServiceTitle)

	conv, err := f.repos.Conversations.GetByPair(ctx, f.customer.ID, f.provider.ID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "New booking request for Plumbing on Mar 1, 2026 at 10:00", *conv.LastMessage)
	assert.Equal(t, 1, conv.ProviderUnread)

	changes := f.pub.forTable(service.TableBookings)
	require.Len(t, changes, 1)
	assert.Equal(t, f.listing.ID, changes[0].Keys["service_id"])
	assert.Equal(t, f.customer.ID, changes[0].Keys["customer_id"])

	t.Run("SecondBookingKeepsConversation", func(t *testing.T) {
		notifier.On("BookingEvent", mock.Anything, mock.Anything).Return(nil).Once()
		f.book(t)
		again, err := f.repos.Conversations.GetByPair(ctx, f.customer.ID, f.provider.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, again.ID)
		assert.Equal(t, 1, again.ProviderUnread)
	})
}

func TestBookingCreateRejects(t *testing.T) {
	f := newBookingFixture(t, quietNotifier())
	ctx := context.Background()

	t.Run("MissingFields", func(t *testing.T) {
		in := f.input()
		in.CustomerPhone = ""
		_, err := f.svc.Create(ctx, f.customer.ID, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.ErrorContains(t, err, "customer_phone")
	})

	t.Run("BadDateAndUrgency", func(t *testing.T) {
		in := f.input()
		in.BookingDate = "03/01/2026"
		_, err := f.svc.Create(ctx, f.customer.ID, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		in = f.input()
		in.Urgency = "whenever"
		_, err = f.svc.Create(ctx, f.customer.ID, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("OwnListing", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.provider.ID, f.input())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("UnknownListing", func(t *testing.T) {
		in := f.input()
		in.ServiceID = "missing"
		_, err := f.svc.Create(ctx, f.customer.ID, in)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("PausedListing", func(t *testing.T) {
		require.NoError(t, f.repos.Listings.UpdateStatus(ctx, f.listing.ID, domain.ListingPaused))
		_, err := f.svc.Create(ctx, f.customer.ID, f.input())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestBookingStatusFlow(t *testing.T) {
	f := newBookingFixture(t, quietNotifier())
	ctx := context.Background()

	pending := f.book(t)
	confirmed := f.book(t)
	completed := f.book(t)

	_, err := f.svc.UpdateStatus(ctx, confirmed.ID, f.provider.ID, domain.BookingConfirmed, nil)
	require.NoError(t, err)

	amount := 100.0
	done, err := f.svc.UpdateStatus(ctx, completed.ID, f.provider.ID, domain.BookingCompleted, &amount)
	require.NoError(t, err)
	assert.Equal(t, 100.0, done.Amount())

	stats, err := f.svc.Stats(ctx, f.provider.ID, domain.RoleProvider)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Cancelled)
	assert.Equal(t, 100.0, stats.TotalRevenue)
	assert.Equal(t, stats.Total, stats.Pending+stats.Confirmed+stats.Completed+stats.Cancelled)

	customerStats, err := f.svc.Stats(ctx, f.customer.ID, domain.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, 3, customerStats.Total)

	t.Run("AmountOnlyRecordedOnCompletion", func(t *testing.T) {
		other := 55.0
		b, err := f.svc.UpdateStatus(ctx, confirmed.ID, f.provider.ID, domain.BookingConfirmed, &other)
		require.NoError(t, err)
		assert.Nil(t, b.TotalAmount)
	})

	t.Run("CustomerMayOnlyCancel", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(ctx, pending.ID, f.customer.ID, domain.BookingConfirmed, nil)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		b, err := f.svc.UpdateStatus(ctx, pending.ID, f.customer.ID, domain.BookingCancelled, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingCancelled, b.Status)
	})

	t.Run("PermissiveTransitions", func(t *testing.T) {
		b, err := f.svc.UpdateStatus(ctx, pending.ID, f.provider.ID, domain.BookingPending, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingPending, b.Status)
	})

	t.Run("Cancel", func(t *testing.T) {
		b, err := f.svc.Cancel(ctx, confirmed.ID, f.customer.ID, "schedule changed")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingCancelled, b.Status)
		assert.Equal(t, "Cancelled: schedule changed", b.ServiceDetails)

		b, err = f.svc.Cancel(ctx, pending.ID, f.provider.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "Cancelled by user", b.ServiceDetails)
	})

	t.Run("Strangers", func(t *testing.T) {
		stranger := seedProfile(t, f.repos, "sam", domain.RoleCustomer)
		_, err := f.svc.Get(ctx, pending.ID, stranger.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = f.svc.Cancel(ctx, pending.ID, stranger.ID, "")
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = f.svc.Get(ctx, "missing", stranger.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestBookingStatusNotifications(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("BookingEvent", mock.Anything, mock.MatchedBy(func(n notify.BookingNotification) bool {
		return n.Event == notify.EventBookingCreated
	})).Return(nil)
	f := newBookingFixture(t, notifier)
	ctx := context.Background()
	b := f.book(t)

	notifier.On("BookingEvent", mock.Anything, mock.MatchedBy(func(n notify.BookingNotification) bool {
		return n.Event == notify.EventBookingConfirmed && n.Envelope.To == "cathy@example.com"
	})).Return(nil).Once()
	_, err := f.svc.UpdateStatus(ctx, b.ID, f.provider.ID, domain.BookingConfirmed, nil)
	require.NoError(t, err)

	notifier.On("BookingEvent", mock.Anything, mock.MatchedBy(func(n notify.BookingNotification) bool {
		return n.Event == notify.EventBookingCancelled && n.Envelope.To == "pete@example.com"
	})).Return(nil).Once()
	_, err = f.svc.Cancel(ctx, b.ID, f.customer.ID, "")
	require.NoError(t, err)

	notifier.AssertExpectations(t)
}

func TestBookingList(t *testing.T) {
	f := newBookingFixture(t, quietNotifier())
	ctx := context.Background()

	first := f.book(t)
	in := f.input()
	in.BookingDate = "2026-04-10"
	in.ServiceAddress = "99 Elm Ave"
	second, err := f.svc.Create(ctx, f.customer.ID, in)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, f.provider.ID, domain.RoleProvider, domain.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	april, err := f.svc.List(ctx, f.customer.ID, domain.RoleCustomer, domain.BookingFilter{DateFrom: "2026-04-01", DateTo: "2026-04-30"})
	require.NoError(t, err)
	require.Len(t, april, 1)
	assert.Equal(t, second.ID, april[0].ID)

	byAddress, err := f.svc.List(ctx, f.customer.ID, domain.RoleCustomer, domain.BookingFilter{Search: "main st"})
	require.NoError(t, err)
	require.Len(t, byAddress, 1)
	assert.Equal(t, first.ID, byAddress[0].ID)

	asProvider, err := f.svc.List(ctx, f.customer.ID, domain.RoleProvider, domain.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, asProvider)

	_, err = f.svc.List(ctx, f.customer.ID, "admin", domain.BookingFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
