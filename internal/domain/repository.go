package domain

import (
	"context"
)

// ListingFilter narrows listing reads. Empty fields are ignored. Search is
// applied in memory by the listing service, not by repositories.
type ListingFilter struct {
	ProviderID string
	Status     ListingStatus
	Category   string
	City       string
	Search     string
}

// BookingFilter narrows role-scoped booking reads. DateFrom and DateTo are
// inclusive YYYY-MM-DD bounds on booking_date. Limit 0 means no limit.
type BookingFilter struct {
	UserID    string
	Role      Role
	Status    BookingStatus
	DateFrom  string
	DateTo    string
	ServiceID string
	Search    string
	Limit     int
}

// BookingUpdate describes a status mutation. Nil pointers leave the column as is.
type BookingUpdate struct {
	Status         BookingStatus
	TotalAmount    *float64
	ServiceDetails *string
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
}

// ListingRepository defines persistence operations for service listings.
type ListingRepository interface {
	Create(ctx context.Context, l *Listing) error
	GetByID(ctx context.Context, id string) (*Listing, error)
	List(ctx context.Context, f ListingFilter) ([]*Listing, error)
	Update(ctx context.Context, l *Listing) error
	UpdateStatus(ctx context.Context, id string, status ListingStatus) error
	SetImages(ctx context.Context, id string, images []string) error
	// IncrementViews bumps the view counter in one statement and returns the new value.
	IncrementViews(ctx context.Context, id string) (int, error)
	// RefreshRating recomputes rating and review_count from the reviews table.
	RefreshRating(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// BookingRepository defines persistence operations for bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, f BookingFilter) ([]*Booking, error)
	UpdateStatus(ctx context.Context, id string, u BookingUpdate) error
}

// ConversationRepository defines persistence operations for conversations
// and the messages appended to them.
type ConversationRepository interface {
	// CreateIfAbsent inserts c unless a conversation for the same
	// (customer, provider) pair exists. On conflict c is overwritten with the
	// stored row and created is false. When created and initial is non-nil the
	// message row is inserted in the same transaction.
	CreateIfAbsent(ctx context.Context, c *Conversation, initial *Message) (created bool, err error)
	GetByID(ctx context.Context, id string) (*Conversation, error)
	GetByPair(ctx context.Context, customerID, providerID string) (*Conversation, error)
	// ListForUser returns conversations where userID is on either side.
	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
	ListByRole(ctx context.Context, userID string, role Role) ([]*Conversation, error)
	// AppendMessage inserts m and, in the same transaction, updates the
	// denormalized last-message fields and increments the recipient's counter.
	AppendMessage(ctx context.Context, m *Message, recipient Role) error
	ResetUnread(ctx context.Context, id string, role Role) error
	TotalUnread(ctx context.Context, userID string, role Role) (int, error)
}

// MessageRepository defines read operations for messages.
type MessageRepository interface {
	GetByID(ctx context.Context, id string) (*Message, error)
	ListForConversation(ctx context.Context, conversationID string) ([]*Message, error)
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	// Create returns ErrConflict when the booking already has a review.
	Create(ctx context.Context, r *Review) error
	GetByBooking(ctx context.Context, bookingID string) (*Review, error)
	ListForService(ctx context.Context, serviceID string) ([]*Review, error)
	// ListByRole returns reviews left (customer) or received (provider),
	// newest first. Limit 0 means no limit.
	ListByRole(ctx context.Context, userID string, role Role, limit int) ([]*Review, error)
}

// Repositories bundles every repository of one store backend.
type Repositories struct {
	Profiles      ProfileRepository
	Listings      ListingRepository
	Bookings      BookingRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Reviews       ReviewRepository
}
