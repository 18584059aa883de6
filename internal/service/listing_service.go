package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
	"servicehub/internal/storage"
)

// ListingService manages provider listings (the "services" table).
type ListingService struct {
	listings domain.ListingRepository
	profiles domain.ProfileRepository
	store    storage.ObjectStore
	pub      realtime.Publisher
}

func NewListingService(listings domain.ListingRepository, profiles domain.ProfileRepository, store storage.ObjectStore, pub realtime.Publisher) *ListingService {
	return &ListingService{
		listings: listings,
		profiles: profiles,
		store:    store,
		pub:      publisherOrNop(pub),
	}
}

type ListingInput struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Category          string             `json:"category"`
	SpecificService   string             `json:"specific_service"`
	PricingType       domain.PricingType `json:"pricing_type"`
	PricingAmount     *float64           `json:"pricing_amount"`
	Currency          string             `json:"currency"`
	LocationAddress   string             `json:"location_address"`
	LocationCity      string             `json:"location_city"`
	LocationState     string             `json:"location_state"`
	LocationZip       string             `json:"location_zip"`
	ServiceRadius     int                `json:"service_radius"`
	AvailabilityDays  []string           `json:"availability_days"`
	AvailabilityStart string             `json:"availability_start"`
	AvailabilityEnd   string             `json:"availability_end"`
	Features          []string           `json:"features"`
	Requirements      string             `json:"requirements"`
}

// Upload is one file of a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type ListingStats struct {
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	Paused        int     `json:"paused"`
	Inactive      int     `json:"inactive"`
	TotalViews    int     `json:"totalViews"`
	TotalReviews  int     `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
}

func (in *ListingInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.LocationCity = strings.TrimSpace(in.LocationCity)
	in.LocationState = strings.TrimSpace(in.LocationState)

	if err := requireFields(
		"title", in.Title,
		"category", in.Category,
		"description", in.Description,
		"location_city", in.LocationCity,
		"location_state", in.LocationState,
	); err != nil {
		return err
	}

	if in.PricingType == "" {
		in.PricingType = domain.PricingHourly
	}
	if !in.PricingType.Valid() {
		return domain.Invalidf("pricing_type must be hourly, fixed or custom")
	}
	if in.PricingType == domain.PricingCustom {
		in.PricingAmount = nil
	} else if in.PricingAmount != nil && *in.PricingAmount < 0 {
		return domain.Invalidf("pricing_amount cannot be negative")
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.ServiceRadius < 0 {
		return domain.Invalidf("service_radius cannot be negative")
	}
	if in.AvailabilityStart == "" {
		in.AvailabilityStart = "09:00"
	}
	if in.AvailabilityEnd == "" {
		in.AvailabilityEnd = "17:00"
	}
	return nil
}

func (in *ListingInput) apply(l *domain.Listing) {
	l.Title = in.Title
	l.Description = in.Description
	l.Category = in.Category
	l.SpecificService = in.SpecificService
	l.PricingType = in.PricingType
	l.PricingAmount = in.PricingAmount
	l.Currency = in.Currency
	l.LocationAddress = in.LocationAddress
	l.LocationCity = in.LocationCity
	l.LocationState = in.LocationState
	l.LocationZip = in.LocationZip
	l.ServiceRadius = in.ServiceRadius
	l.AvailabilityDays = in.AvailabilityDays
	l.AvailabilityStart = in.AvailabilityStart
	l.AvailabilityEnd = in.AvailabilityEnd
	l.Features = in.Features
	l.Requirements = in.Requirements
}

// Create publishes a new active listing, then uploads its images. Image
// failures are logged and skipped; the listing is returned regardless.
func (s *ListingService) Create(ctx context.Context, providerID string, in ListingInput, images []Upload) (*domain.Listing, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	provider, err := s.profiles.GetByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if provider == nil {
		return nil, domain.NotFoundf("profile %s", providerID)
	}
	if provider.UserType != domain.RoleProvider {
		return nil, fmt.Errorf("only providers can publish services: %w", domain.ErrForbidden)
	}

	l := &domain.Listing{ProviderID: providerID, Status: domain.ListingActive}
	in.apply(l)
	if l.ServiceRadius == 0 {
		l.ServiceRadius = 10
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, err
	}

	if urls := s.uploadImages(ctx, l, images); len(urls) > 0 {
		if err := s.listings.SetImages(ctx, l.ID, urls); err != nil {
			log.Printf("listing: save images of %s: %v", l.ID, err)
		} else {
			l.Images = urls
		}
	}

	if saved, err := s.listings.GetByID(ctx, l.ID); err == nil && saved != nil {
		l = saved
	}
	s.pub.Publish(listingChange(realtime.EventInsert, l))
	return l, nil
}

func (s *ListingService) uploadImages(ctx context.Context, l *domain.Listing, images []Upload) []string {
	if len(images) == 0 {
		return nil
	}
	if s.store == nil {
		log.Printf("listing: no object store configured, dropping %d images of %s", len(images), l.ID)
		return nil
	}
	var urls []string
	for i, img := range images {
		key := storage.ListingImageKey(l.ProviderID, l.ID, i, img.Filename)
		url, err := s.store.Put(ctx, key, img.ContentType, img.Body)
		if err != nil {
			log.Printf("listing: upload %s: %v", key, err)
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// List returns the provider's own listings, newest first.
func (s *ListingService) List(ctx context.Context, providerID string, f domain.ListingFilter) ([]*domain.Listing, error) {
	f.ProviderID = providerID
	return s.find(ctx, f)
}

// Browse is the public catalogue. It only ever lists active listings; owners
// see their paused and inactive ones through List.
func (s *ListingService) Browse(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	f.Status = domain.ListingActive
	return s.find(ctx, f)
}

func (s *ListingService) find(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Invalidf("invalid status %q", f.Status)
	}
	items, err := s.listings.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return searchListings(items, f.Search), nil
}

func searchListings(items []*domain.Listing, q string) []*domain.Listing {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	out := make([]*domain.Listing, 0, len(items))
	for _, l := range items {
		if containsFold(q, l.Title, l.Description, l.Category, l.SpecificService) {
			out = append(out, l)
		}
	}
	return out
}

func (s *ListingService) Get(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, domain.NotFoundf("service %s", id)
	}
	return l, nil
}

// View counts a page view and returns the new total.
func (s *ListingService) View(ctx context.Context, id string) (int, error) {
	views, err := s.listings.IncrementViews(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("record view of %s: %w", id, err)
	}
	return views, nil
}

func (s *ListingService) Update(ctx context.Context, id, providerID string, in ListingInput) (*domain.Listing, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	l, err := s.owned(ctx, id, providerID)
	if err != nil {
		return nil, err
	}
	in.apply(l)
	if err := s.listings.Update(ctx, l); err != nil {
		return nil, err
	}
	s.pub.Publish(listingChange(realtime.EventUpdate, l))
	return l, nil
}

// UpdateStatus moves a listing between active, paused and inactive in any
// direction. Other fields are untouched.
func (s *ListingService) UpdateStatus(ctx context.Context, id, providerID string, status domain.ListingStatus) (*domain.Listing, error) {
	if !status.Valid() {
		return nil, domain.Invalidf("status must be active, paused or inactive")
	}
	if _, err := s.owned(ctx, id, providerID); err != nil {
		return nil, err
	}
	if err := s.listings.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(listingChange(realtime.EventUpdate, l))
	return l, nil
}

// Delete removes the listing row and then its stored images. Bookings that
// reference it are kept.
func (s *ListingService) Delete(ctx context.Context, id, providerID string) error {
	l, err := s.owned(ctx, id, providerID)
	if err != nil {
		return err
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.DeletePrefix(ctx, storage.ListingImagePrefix(l.ProviderID, l.ID)); err != nil {
			log.Printf("listing: delete images of %s: %v", l.ID, err)
		}
	}
	s.pub.Publish(listingChange(realtime.EventDelete, l))
	return nil
}

func (s *ListingService) Stats(ctx context.Context, providerID string) (*ListingStats, error) {
	items, err := s.listings.List(ctx, domain.ListingFilter{ProviderID: providerID})
	if err != nil {
		return nil, err
	}
	return computeListingStats(items), nil
}

// computeListingStats weights each listing's rating by its review count.
func computeListingStats(items []*domain.Listing) *ListingStats {
	st := &ListingStats{Total: len(items)}
	var weighted float64
	for _, l := range items {
		switch l.Status {
		case domain.ListingActive:
			st.Active++
		case domain.ListingPaused:
			st.Paused++
		case domain.ListingInactive:
			st.Inactive++
		}
		st.TotalViews += l.Views
		if l.ReviewCount > 0 {
			st.TotalReviews += l.ReviewCount
			weighted += l.Rating * float64(l.ReviewCount)
		}
	}
	if st.TotalReviews > 0 {
		st.AverageRating = weighted / float64(st.TotalReviews)
	}
	return st
}

func (s *ListingService) owned(ctx context.Context, id, providerID string) (*domain.Listing, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.ProviderID != providerID {
		return nil, fmt.Errorf("service %s belongs to another provider: %w", id, domain.ErrForbidden)
	}
	return l, nil
}
