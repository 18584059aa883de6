package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
)

const maxReviewComment = 1000

// ReviewService records customer ratings of completed bookings.
type ReviewService struct {
	reviews  domain.ReviewRepository
	bookings domain.BookingRepository
	listings domain.ListingRepository
	pub      realtime.Publisher
}

func NewReviewService(reviews domain.ReviewRepository, bookings domain.BookingRepository, listings domain.ListingRepository, pub realtime.Publisher) *ReviewService {
	return &ReviewService{reviews: reviews, bookings: bookings, listings: listings, pub: publisherOrNop(pub)}
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create reviews the caller's own completed booking. A booking takes one
// review; the listing's rating and review count are recomputed afterwards.
func (s *ReviewService) Create(ctx context.Context, customerID, bookingID string, in ReviewInput) (*domain.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, domain.Invalidf("rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(comment) > maxReviewComment {
		return nil, domain.Invalidf("comment exceeds %d characters", maxReviewComment)
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil {
		return nil, domain.NotFoundf("booking %s", bookingID)
	}
	if b.CustomerID != customerID {
		return nil, fmt.Errorf("only the customer can review booking %s: %w", bookingID, domain.ErrForbidden)
	}
	if b.Status != domain.BookingCompleted {
		return nil, domain.Invalidf("only completed bookings can be reviewed")
	}

	r := &domain.Review{
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		ProviderID: b.ProviderID,
		ServiceID:  b.ServiceID,
		Rating:     in.Rating,
		Comment:    emptyToNil(&comment),
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}
	r.ServiceTitle = b.ServiceTitle
	s.pub.Publish(reviewChange(r))

	if err := s.listings.RefreshRating(ctx, b.ServiceID); err != nil {
		log.Printf("review: refresh rating of %s: %v", b.ServiceID, err)
	} else if l, err := s.listings.GetByID(ctx, b.ServiceID); err == nil && l != nil {
		s.pub.Publish(listingChange(realtime.EventUpdate, l))
	}
	return r, nil
}

func (s *ReviewService) ListForService(ctx context.Context, serviceID string) ([]*domain.Review, error) {
	return s.reviews.ListForService(ctx, serviceID)
}
