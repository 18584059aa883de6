package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/notify"
	"servicehub/internal/realtime"
)

// BookingService schedules customer requests against listings.
type BookingService struct {
	bookings domain.BookingRepository
	listings domain.ListingRepository
	profiles domain.ProfileRepository
	convs    *ConversationService
	notifier notify.Notifier
	pub      realtime.Publisher

	Now Clock
}

func NewBookingService(
	bookings domain.BookingRepository,
	listings domain.ListingRepository,
	profiles domain.ProfileRepository,
	convs *ConversationService,
	notifier notify.Notifier,
	pub realtime.Publisher,
) *BookingService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &BookingService{
		bookings: bookings,
		listings: listings,
		profiles: profiles,
		convs:    convs,
		notifier: notifier,
		pub:      publisherOrNop(pub),
	}
}

type BookingInput struct {
	ServiceID      string         `json:"service_id"`
	BookingDate    string         `json:"booking_date"`
	BookingTime    string         `json:"booking_time"`
	CustomerName   string         `json:"customer_name"`
	CustomerPhone  string         `json:"customer_phone"`
	CustomerEmail  string         `json:"customer_email"`
	ServiceAddress string         `json:"service_address"`
	ServiceDetails string         `json:"service_details"`
	Urgency        domain.Urgency `json:"urgency"`
}

type BookingStats struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	Confirmed      int     `json:"confirmed"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	TotalRevenue   float64 `json:"totalRevenue"`
	ThisWeek       int     `json:"thisWeek"`
	ThisMonth      int     `json:"thisMonth"`
	WeeklyRevenue  float64 `json:"weeklyRevenue"`
	MonthlyRevenue float64 `json:"monthlyRevenue"`
}

const bookingDateLayout = "2006-01-02"

func (in *BookingInput) validate() error {
	if err := requireFields(
		"service_id", in.ServiceID,
		"booking_date", in.BookingDate,
		"booking_time", in.BookingTime,
		"customer_name", in.CustomerName,
		"customer_phone", in.CustomerPhone,
		"customer_email", in.CustomerEmail,
		"service_address", in.ServiceAddress,
	); err != nil {
		return err
	}
	if _, err := time.Parse(bookingDateLayout, in.BookingDate); err != nil {
		return domain.Invalidf("booking_date must be YYYY-MM-DD")
	}
	if in.Urgency == "" {
		in.Urgency = domain.UrgencyNormal
	}
	if !in.Urgency.Valid() {
		return domain.Invalidf("urgency must be normal, urgent or emergency")
	}
	return nil
}

// Create books an active listing for customerID. The provider is taken from
// the listing. A conversation with the provider is opened with a booking
// summary; failing to open it does not fail the booking.
func (s *BookingService) Create(ctx context.Context, customerID string, in BookingInput) (*domain.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	l, err := s.listings.GetByID(ctx, in.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if l == nil {
		return nil, domain.NotFoundf("service %s", in.ServiceID)
	}
	if l.Status != domain.ListingActive {
		return nil, domain.Invalidf("service is not accepting bookings")
	}
	if l.ProviderID == customerID {
		return nil, domain.Invalidf("cannot book your own service")
	}

	b := &domain.Booking{
		ServiceID:      l.ID,
		CustomerID:     customerID,
		ProviderID:     l.ProviderID,
		CustomerName:   strings.TrimSpace(in.CustomerName),
		CustomerPhone:  strings.TrimSpace(in.CustomerPhone),
		CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		ServiceAddress: strings.TrimSpace(in.ServiceAddress),
		ServiceDetails: in.ServiceDetails,
		BookingDate:    in.BookingDate,
		BookingTime:    in.BookingTime,
		Urgency:        in.Urgency,
		Status:         domain.BookingPending,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	b.ServiceTitle = l.Title

	if s.convs != nil {
		_, err := s.convs.CreateOrGet(ctx, CreateConversationInput{
			CustomerID:     customerID,
			ProviderID:     l.ProviderID,
			ServiceID:      &l.ID,
			InitialMessage: bookingRequestMessage(l.Title, b.BookingDate, b.BookingTime),
		})
		if err != nil {
			log.Printf("booking: open conversation for %s: %v", b.ID, err)
		}
	}

	saved := s.reload(ctx, b)
	s.pub.Publish(bookingChange(realtime.EventInsert, saved))
	s.notifyProfile(ctx, notify.EventBookingCreated, saved, saved.ProviderID)
	return saved, nil
}

func bookingRequestMessage(title, date, at string) string {
	if d, err := time.Parse(bookingDateLayout, date); err == nil {
		date = d.Format("Jan 2, 2006")
	}
	return fmt.Sprintf("New booking request for %s on %s at %s", title, date, at)
}

// List returns the user's bookings seen from role, newest first.
func (s *BookingService) List(ctx context.Context, userID string, role domain.Role, f domain.BookingFilter) ([]*domain.Booking, error) {
	if !role.Valid() {
		return nil, domain.Invalidf("invalid role %q", role)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Invalidf("invalid status %q", f.Status)
	}
	f.UserID, f.Role = userID, role
	items, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return items, nil
	}
	out := make([]*domain.Booking, 0, len(items))
	for _, b := range items {
		if containsFold(q, b.ServiceTitle, b.CustomerName, b.ServiceAddress, b.ServiceDetails) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Get returns the booking when userID is its customer or provider.
func (s *BookingService) Get(ctx context.Context, id, userID string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil {
		return nil, domain.NotFoundf("booking %s", id)
	}
	if b.CustomerID != userID && b.ProviderID != userID {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrForbidden)
	}
	return b, nil
}

// UpdateStatus accepts any status change. The provider may set any status,
// the customer may only cancel. totalAmount is recorded only on completion.
func (s *BookingService) UpdateStatus(ctx context.Context, id, actorID string, status domain.BookingStatus, totalAmount *float64) (*domain.Booking, error) {
	if !status.Valid() {
		return nil, domain.Invalidf("invalid status %q", status)
	}
	b, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if actorID == b.CustomerID && actorID != b.ProviderID && status != domain.BookingCancelled {
		return nil, fmt.Errorf("customers can only cancel a booking: %w", domain.ErrForbidden)
	}

	u := domain.BookingUpdate{Status: status}
	if status == domain.BookingCompleted && totalAmount != nil {
		if *totalAmount < 0 {
			return nil, domain.Invalidf("total_amount cannot be negative")
		}
		u.TotalAmount = totalAmount
	}
	return s.apply(ctx, b, actorID, u)
}

// Cancel cancels the booking and records the reason in service_details.
func (s *BookingService) Cancel(ctx context.Context, id, actorID, reason string) (*domain.Booking, error) {
	b, err := s.Get(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	details := "Cancelled by user"
	if r := strings.TrimSpace(reason); r != "" {
		details = "Cancelled: " + r
	}
	return s.apply(ctx, b, actorID, domain.BookingUpdate{
		Status:         domain.BookingCancelled,
		ServiceDetails: &details,
	})
}

func (s *BookingService) apply(ctx context.Context, b *domain.Booking, actorID string, u domain.BookingUpdate) (*domain.Booking, error) {
	if err := s.bookings.UpdateStatus(ctx, b.ID, u); err != nil {
		return nil, fmt.Errorf("update booking %s: %w", b.ID, err)
	}
	updated := s.reload(ctx, b)
	s.pub.Publish(bookingChange(realtime.EventUpdate, updated))

	if ev, ok := notify.EventForStatus(u.Status); ok {
		switch {
		case ev == notify.EventBookingCancelled && actorID == updated.CustomerID:
			s.notifyProfile(ctx, ev, updated, updated.ProviderID)
		default:
			s.notifyEmail(ctx, ev, updated, updated.CustomerEmail)
		}
	}
	return updated, nil
}

// Stats summarizes the user's bookings. Week and month boundaries are taken
// from the service clock in its location.
func (s *BookingService) Stats(ctx context.Context, userID string, role domain.Role) (*BookingStats, error) {
	if !role.Valid() {
		return nil, domain.Invalidf("invalid role %q", role)
	}
	items, err := s.bookings.List(ctx, domain.BookingFilter{UserID: userID, Role: role})
	if err != nil {
		return nil, err
	}
	return computeBookingStats(items, clockOrNow(s.Now)()), nil
}

func computeBookingStats(items []*domain.Booking, now time.Time) *BookingStats {
	week, month := weekStart(now), monthStart(now)
	st := &BookingStats{}
	for _, b := range items {
		amount := b.Amount()
		st.Total++
		st.TotalRevenue += amount
		switch b.Status {
		case domain.BookingPending:
			st.Pending++
		case domain.BookingConfirmed:
			st.Confirmed++
		case domain.BookingCompleted:
			st.Completed++
		case domain.BookingCancelled:
			st.Cancelled++
		}
		if !b.CreatedAt.Before(week) {
			st.ThisWeek++
			st.WeeklyRevenue += amount
		}
		if !b.CreatedAt.Before(month) {
			st.ThisMonth++
			st.MonthlyRevenue += amount
		}
	}
	return st
}

// weekStart is the most recent Sunday at midnight in now's location.
func weekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, now.Location())
}

func monthStart(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}

func (s *BookingService) reload(ctx context.Context, b *domain.Booking) *domain.Booking {
	saved, err := s.bookings.GetByID(ctx, b.ID)
	if err != nil || saved == nil {
		return b
	}
	return saved
}

func (s *BookingService) notifyProfile(ctx context.Context, ev notify.BookingEvent, b *domain.Booking, profileID string) {
	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil || p == nil {
		log.Printf("booking: notify %s on %s: recipient %s not found: %v", ev, b.ID, profileID, err)
		return
	}
	s.notifyEmail(ctx, ev, b, p.Email)
}

func (s *BookingService) notifyEmail(ctx context.Context, ev notify.BookingEvent, b *domain.Booking, to string) {
	if err := s.notifier.BookingEvent(ctx, notify.NewBookingNotification(ev, b, to)); err != nil {
		log.Printf("booking: notify %s on %s: %v", ev, b.ID, err)
	}
}
