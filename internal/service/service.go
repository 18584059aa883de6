package service

import (
	"strings"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
)

// Tables published on the change feed.
const (
	TableProfiles      = "profiles"
	TableServices      = "services"
	TableBookings      = "bookings"
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableReviews       = "reviews"
)

// Clock returns the current time. Services default to time.Now; tests pin it.
type Clock func() time.Time

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Change) {}

func publisherOrNop(p realtime.Publisher) realtime.Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func profileChange(ev realtime.EventType, p *domain.Profile) realtime.Change {
	return realtime.Change{
		Table:  TableProfiles,
		Type:   ev,
		Record: p,
		Keys:   map[string]string{"id": p.ID},
	}
}

func listingChange(ev realtime.EventType, l *domain.Listing) realtime.Change {
	return realtime.Change{
		Table:  TableServices,
		Type:   ev,
		Record: l,
		Keys:   map[string]string{"id": l.ID, "provider_id": l.ProviderID},
	}
}

func bookingChange(ev realtime.EventType, b *domain.Booking) realtime.Change {
	return realtime.Change{
		Table:  TableBookings,
		Type:   ev,
		Record: b,
		Keys: map[string]string{
			"id":          b.ID,
			"customer_id": b.CustomerID,
			"provider_id": b.ProviderID,
			"service_id":  b.ServiceID,
		},
	}
}

func conversationChange(ev realtime.EventType, c *domain.Conversation) realtime.Change {
	return realtime.Change{
		Table:  TableConversations,
		Type:   ev,
		Record: c,
		Keys:   map[string]string{"id": c.ID, "customer_id": c.CustomerID, "provider_id": c.ProviderID},
	}
}

func messageChange(m *domain.Message) realtime.Change {
	return realtime.Change{
		Table:  TableMessages,
		Type:   realtime.EventInsert,
		Record: m,
		Keys:   map[string]string{"id": m.ID, "conversation_id": m.ConversationID, "sender_id": m.SenderID},
	}
}

func reviewChange(r *domain.Review) realtime.Change {
	return realtime.Change{
		Table:  TableReviews,
		Type:   realtime.EventInsert,
		Record: r,
		Keys: map[string]string{
			"id":          r.ID,
			"booking_id":  r.BookingID,
			"customer_id": r.CustomerID,
			"provider_id": r.ProviderID,
			"service_id":  r.ServiceID,
		},
	}
}

func ptr[T any](v T) *T { return &v }

// emptyToNil normalizes optional text fields so "" is stored as NULL.
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// requireFields takes name/value pairs and reports every empty value.
func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return domain.Invalidf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// containsFold reports whether any field contains the lowercase query q.
func containsFold(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
