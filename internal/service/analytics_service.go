package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"servicehub/internal/domain"
)

const (
	trendDays          = 30
	topServicesLimit   = 5
	recentBookingLimit = 5
	recentReviewLimit  = 3
	recentActivityMax  = 10
	unknownService     = "Unknown Service"
)

// AnalyticsService builds the account dashboard from the role's bookings,
// listings, reviews and conversations. Nothing is cached.
type AnalyticsService struct {
	repos domain.Repositories

	Now Clock
}

func NewAnalyticsService(repos domain.Repositories) *AnalyticsService {
	return &AnalyticsService{repos: repos}
}

type Dashboard struct {
	TotalBookings      int           `json:"totalBookings"`
	TotalRevenue       float64       `json:"totalRevenue"`
	AverageRating      float64       `json:"averageRating"`
	ResponseRate       int           `json:"responseRate"`
	CompletedJobs      int           `json:"completedJobs"`
	PendingBookings    int           `json:"pendingBookings"`
	MonthlyRevenue     float64       `json:"monthlyRevenue"`
	MonthlyBookings    int           `json:"monthlyBookings"`
	TotalServices      int           `json:"totalServices"`
	ActiveServices     int           `json:"activeServices"`
	TopServices        []TopService  `json:"topServices"`
	RecentActivity     []Activity    `json:"recentActivity"`
	BookingTrends      []TrendPoint  `json:"bookingTrends"`
	RatingDistribution []RatingCount `json:"ratingDistribution"`
}

type TopService struct {
	ServiceID    string  `json:"service_id"`
	Title        string  `json:"title"`
	BookingCount int     `json:"booking_count"`
	Revenue      float64 `json:"revenue"`
}

type Activity struct {
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status,omitempty"`
}

type TrendPoint struct {
	Date     string  `json:"date"`
	Bookings int     `json:"bookings"`
	Revenue  float64 `json:"revenue"`
}

type RatingCount struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

type dashboardInputs struct {
	bookings       []*domain.Booking
	listings       []*domain.Listing
	reviews        []*domain.Review
	conversations  []*domain.Conversation
	recentBookings []*domain.Booking
	recentReviews  []*domain.Review
}

// Dashboard loads the inputs concurrently and folds them. The first failed
// read cancels the others and is returned.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID string, role domain.Role) (*Dashboard, error) {
	if !role.Valid() {
		return nil, domain.Invalidf("invalid role %q", role)
	}

	var in dashboardInputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.bookings, err = s.repos.Bookings.List(gctx, domain.BookingFilter{UserID: userID, Role: role})
		return err
	})
	if role == domain.RoleProvider {
		g.Go(func() (err error) {
			in.listings, err = s.repos.Listings.List(gctx, domain.ListingFilter{ProviderID: userID})
			return err
		})
	}
	g.Go(func() (err error) {
		in.reviews, err = s.repos.Reviews.ListByRole(gctx, userID, role, 0)
		return err
	})
	g.Go(func() (err error) {
		in.conversations, err = s.repos.Conversations.ListByRole(gctx, userID, role)
		return err
	})
	g.Go(func() (err error) {
		in.recentBookings, err = s.repos.Bookings.List(gctx, domain.BookingFilter{UserID: userID, Role: role, Limit: recentBookingLimit})
		return err
	})
	g.Go(func() (err error) {
		in.recentReviews, err = s.repos.Reviews.ListByRole(gctx, userID, role, recentReviewLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	return buildDashboard(in, role, clockOrNow(s.Now)()), nil
}

func buildDashboard(in dashboardInputs, role domain.Role, now time.Time) *Dashboard {
	d := &Dashboard{
		AverageRating:      averageRating(in.reviews),
		ResponseRate:       responseRate(in.conversations),
		TopServices:        []TopService{},
		BookingTrends:      bookingTrends(in.bookings, now),
		RecentActivity:     recentActivity(in.recentBookings, in.recentReviews, role),
		RatingDistribution: ratingDistribution(in.reviews),
	}

	month := monthStart(now)
	for _, b := range in.bookings {
		amount := b.Amount()
		d.TotalBookings++
		d.TotalRevenue += amount
		switch b.Status {
		case domain.BookingCompleted:
			d.CompletedJobs++
		case domain.BookingPending:
			d.PendingBookings++
		}
		if !b.CreatedAt.Before(month) {
			d.MonthlyBookings++
			d.MonthlyRevenue += amount
		}
	}

	if role == domain.RoleProvider {
		for _, l := range in.listings {
			d.TotalServices++
			if l.Status == domain.ListingActive {
				d.ActiveServices++
			}
		}
		d.TopServices = topServices(in.bookings)
	}
	return d
}

func averageRating(reviews []*domain.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*10) / 10
}

// responseRate is the share of conversations whose last message came within
// 24 hours of their creation, in percent. No conversations counts as 100.
func responseRate(convs []*domain.Conversation) int {
	if len(convs) == 0 {
		return 100
	}
	var responded int
	for _, c := range convs {
		if c.LastMessageAt != nil && c.LastMessageAt.Sub(c.CreatedAt) <= 24*time.Hour {
			responded++
		}
	}
	return int(math.Round(float64(responded) / float64(len(convs)) * 100))
}

// bookingTrends buckets bookings by UTC creation day over the 30 days ending
// on now's UTC date. Days without bookings are zero.
func bookingTrends(bookings []*domain.Booking, now time.Time) []TrendPoint {
	const layout = "2006-01-02"
	today := now.UTC()
	points := make([]TrendPoint, trendDays)
	index := make(map[string]int, trendDays)
	for i := range points {
		day := today.AddDate(0, 0, i-(trendDays-1)).Format(layout)
		points[i] = TrendPoint{Date: day}
		index[day] = i
	}
	for _, b := range bookings {
		if i, ok := index[b.CreatedAt.UTC().Format(layout)]; ok {
			points[i].Bookings++
			points[i].Revenue += b.Amount()
		}
	}
	return points
}

func topServices(bookings []*domain.Booking) []TopService {
	byID := map[string]*TopService{}
	var order []string
	for _, b := range bookings {
		if b.Status != domain.BookingCompleted {
			continue
		}
		ts, ok := byID[b.ServiceID]
		if !ok {
			title := b.ServiceTitle
			if title == "" {
				title = unknownService
			}
			ts = &TopService{ServiceID: b.ServiceID, Title: title}
			byID[b.ServiceID] = ts
			order = append(order, b.ServiceID)
		}
		ts.BookingCount++
		ts.Revenue += b.Amount()
	}

	out := make([]TopService, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BookingCount != out[j].BookingCount {
			return out[i].BookingCount > out[j].BookingCount
		}
		return out[i].Revenue > out[j].Revenue
	})
	if len(out) > topServicesLimit {
		out = out[:topServicesLimit]
	}
	return out
}

func recentActivity(bookings []*domain.Booking, reviews []*domain.Review, role domain.Role) []Activity {
	out := make([]Activity, 0, len(bookings)+len(reviews))
	for _, b := range bookings {
		other := b.CustomerFullName
		if role == domain.RoleCustomer {
			other = b.ProviderFullName
		}
		out = append(out, Activity{
			Type:        "booking",
			Title:       "Booking " + string(b.Status),
			Description: fmt.Sprintf("%s with %s", b.ServiceTitle, other),
			Timestamp:   b.CreatedAt,
			Status:      string(b.Status),
		})
	}
	title := "Review received"
	if role == domain.RoleCustomer {
		title = "Review left"
	}
	for _, r := range reviews {
		out = append(out, Activity{
			Type:        "review",
			Title:       title,
			Description: fmt.Sprintf("%d stars for %s", r.Rating, r.ServiceTitle),
			Timestamp:   r.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > recentActivityMax {
		out = out[:recentActivityMax]
	}
	return out
}

func ratingDistribution(reviews []*domain.Review) []RatingCount {
	out := make([]RatingCount, 5)
	for i := range out {
		out[i].Rating = i + 1
	}
	for _, r := range reviews {
		if r.Rating >= 1 && r.Rating <= 5 {
			out[r.Rating-1].Count++
		}
	}
	return out
}
