package domain

import "time"

// Role is the account type of a profile. Role-scoped reads use it to pick
// the foreign key column (customer_id or provider_id).
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider
}

// Column returns the bookings/conversations/reviews column owned by the role.
func (r Role) Column() string {
	if r == RoleProvider {
		return "provider_id"
	}
	return "customer_id"
}

type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingPaused   ListingStatus = "paused"
	ListingInactive ListingStatus = "inactive"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingPaused, ListingInactive:
		return true
	}
	return false
}

type PricingType string

const (
	PricingHourly PricingType = "hourly"
	PricingFixed  PricingType = "fixed"
	PricingCustom PricingType = "custom"
)

func (p PricingType) Valid() bool {
	switch p {
	case PricingHourly, PricingFixed, PricingCustom:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyNormal, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}

// Profile is the identity record of a marketplace user.
type Profile struct {
	ID                  string    `db:"id" json:"id"`
	Email               string    `db:"email" json:"email"`
	PasswordHash        string    `db:"password_hash" json:"-"`
	FullName            string    `db:"full_name" json:"full_name"`
	AvatarURL           *string   `db:"avatar_url" json:"avatar_url"`
	UserType            Role      `db:"user_type" json:"user_type"`
	Phone               *string   `db:"phone" json:"phone"`
	BusinessName        *string   `db:"business_name" json:"business_name"`
	BusinessDescription *string   `db:"business_description" json:"business_description"`
	ServiceArea         *string   `db:"service_area" json:"service_area"`
	YearsExperience     *int      `db:"years_experience" json:"years_experience"`
	Verified            bool      `db:"verified" json:"verified"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Listing is a service offering published by a provider (table "services").
type Listing struct {
	ID                string        `db:"id" json:"id"`
	ProviderID        string        `db:"provider_id" json:"provider_id"`
	Title             string        `db:"title" json:"title"`
	Description       string        `db:"description" json:"description"`
	Category          string        `db:"category" json:"category"`
	SpecificService   string        `db:"specific_service" json:"specific_service"`
	PricingType       PricingType   `db:"pricing_type" json:"pricing_type"`
	PricingAmount     *float64      `db:"pricing_amount" json:"pricing_amount"`
	Currency          string        `db:"currency" json:"currency"`
	LocationAddress   string        `db:"location_address" json:"location_address"`
	LocationCity      string        `db:"location_city" json:"location_city"`
	LocationState     string        `db:"location_state" json:"location_state"`
	LocationZip       string        `db:"location_zip" json:"location_zip"`
	ServiceRadius     int           `db:"service_radius" json:"service_radius"`
	AvailabilityDays  []string      `db:"availability_days" json:"availability_days"`
	AvailabilityStart string        `db:"availability_start" json:"availability_start"`
	AvailabilityEnd   string        `db:"availability_end" json:"availability_end"`
	Features          []string      `db:"features" json:"features"`
	Requirements      string        `db:"requirements" json:"requirements"`
	Images            []string      `db:"images" json:"images"`
	Status            ListingStatus `db:"status" json:"status"`
	Views             int           `db:"views" json:"views"`
	Rating            float64       `db:"rating" json:"rating"`
	ReviewCount       int           `db:"review_count" json:"review_count"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`

	// Joined from profiles on reads.
	ProviderName         string  `db:"-" json:"provider_name,omitempty"`
	ProviderBusinessName *string `db:"-" json:"provider_business_name,omitempty"`
}

// Booking is a scheduled request against a listing. The customer contact
// fields are a snapshot taken at booking time.
type Booking struct {
	ID             string        `db:"id" json:"id"`
	ServiceID      string        `db:"service_id" json:"service_id"`
	CustomerID     string        `db:"customer_id" json:"customer_id"`
	ProviderID     string        `db:"provider_id" json:"provider_id"`
	CustomerName   string        `db:"customer_name" json:"customer_name"`
	CustomerPhone  string        `db:"customer_phone" json:"customer_phone"`
	CustomerEmail  string        `db:"customer_email" json:"customer_email"`
	ServiceAddress string        `db:"service_address" json:"service_address"`
	ServiceDetails string        `db:"service_details" json:"service_details"`
	BookingDate    string        `db:"booking_date" json:"booking_date"`
	BookingTime    string        `db:"booking_time" json:"booking_time"`
	Urgency        Urgency       `db:"urgency" json:"urgency"`
	Status         BookingStatus `db:"status" json:"status"`
	TotalAmount    *float64      `db:"total_amount" json:"total_amount"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`

	// Joined on reads.
	ServiceTitle     string `db:"-" json:"service_title,omitempty"`
	CustomerFullName string `db:"-" json:"customer_full_name,omitempty"`
	ProviderFullName string `db:"-" json:"provider_full_name,omitempty"`
}

// Amount returns the finalized total, or 0 when none was recorded.
func (b *Booking) Amount() float64 {
	if b.TotalAmount == nil {
		return 0
	}
	return *b.TotalAmount
}

// Conversation is the single thread between one customer and one provider.
type Conversation struct {
	ID             string     `db:"id" json:"id"`
	CustomerID     string     `db:"customer_id" json:"customer_id"`
	ProviderID     string     `db:"provider_id" json:"provider_id"`
	ServiceID      *string    `db:"service_id" json:"service_id"`
	LastMessage    *string    `db:"last_message" json:"last_message"`
	LastMessageAt  *time.Time `db:"last_message_at" json:"last_message_at"`
	CustomerUnread int        `db:"customer_unread" json:"customer_unread"`
	ProviderUnread int        `db:"provider_unread" json:"provider_unread"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	// Joined on list reads.
	CustomerName   string  `db:"-" json:"customer_name,omitempty"`
	CustomerAvatar *string `db:"-" json:"customer_avatar,omitempty"`
	ProviderName   string  `db:"-" json:"provider_name,omitempty"`
	ProviderAvatar *string `db:"-" json:"provider_avatar,omitempty"`
	ServiceTitle   *string `db:"-" json:"service_title,omitempty"`
}

// RoleOf reports which side of the conversation userID is on.
func (c *Conversation) RoleOf(userID string) (Role, bool) {
	switch userID {
	case c.CustomerID:
		return RoleCustomer, true
	case c.ProviderID:
		return RoleProvider, true
	}
	return "", false
}

// Message is a single entry of a conversation. ClientID is the correlation
// id supplied by the sending client for optimistic entries.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Text           string    `db:"message" json:"message"` // encrypted at rest when a key is configured
	ClientID       *string   `db:"client_id" json:"client_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	SenderName string `db:"-" json:"sender_name,omitempty"`
}

// Review rates a completed booking.
type Review struct {
	ID         string    `db:"id" json:"id"`
	BookingID  string    `db:"booking_id" json:"booking_id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	ServiceID  string    `db:"service_id" json:"service_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	ServiceTitle string `db:"-" json:"service_title,omitempty"`
	CustomerName string `db:"-" json:"customer_name,omitempty"`
	ProviderName string `db:"-" json:"provider_name,omitempty"`
}
