// Package notify delivers booking notifications. The API process enqueues
// asynq tasks; cmd/worker consumes them and sends email.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"servicehub/internal/domain"
)

const (
	TaskBookingEvent = "email:booking_event"
	QueueEmails      = "emails"
)

type BookingEvent string

const (
	EventBookingCreated   BookingEvent = "booking_created"
	EventBookingConfirmed BookingEvent = "booking_confirmed"
	EventBookingCompleted BookingEvent = "booking_completed"
	EventBookingCancelled BookingEvent = "booking_cancelled"
)

// EventForStatus maps a booking status change to its notification event.
// Pending has none.
func EventForStatus(s domain.BookingStatus) (BookingEvent, bool) {
	switch s {
	case domain.BookingConfirmed:
		return EventBookingConfirmed, true
	case domain.BookingCompleted:
		return EventBookingCompleted, true
	case domain.BookingCancelled:
		return EventBookingCancelled, true
	}
	return "", false
}

type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// BookingNotification is the task payload of TaskBookingEvent.
type BookingNotification struct {
	BookingID string        `json:"booking_id"`
	Event     BookingEvent  `json:"event"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// NewBookingNotification composes the email for event on b, addressed to.
func NewBookingNotification(event BookingEvent, b *domain.Booking, to string) BookingNotification {
	title := b.ServiceTitle
	if title == "" {
		title = "your service"
	}

	var subject, body string
	switch event {
	case EventBookingCreated:
		subject = "New booking request"
		body = fmt.Sprintf("%s requested %s on %s at %s.\nAddress: %s\nUrgency: %s",
			b.CustomerName, title, b.BookingDate, b.BookingTime, b.ServiceAddress, b.Urgency)
	case EventBookingConfirmed:
		subject = "Your booking has been confirmed"
		body = fmt.Sprintf("Your booking for %s on %s at %s is confirmed.", title, b.BookingDate, b.BookingTime)
	case EventBookingCompleted:
		subject = "Your booking is complete"
		body = fmt.Sprintf("Your booking for %s is complete. Total %.2f.", title, b.Amount())
	case EventBookingCancelled:
		subject = "Booking cancelled"
		body = fmt.Sprintf("The booking for %s on %s at %s was cancelled.", title, b.BookingDate, b.BookingTime)
		if b.ServiceDetails != "" {
			body += "\n" + b.ServiceDetails
		}
	default:
		subject = "Booking update"
		body = fmt.Sprintf("Booking %s changed to %s.", b.ID, b.Status)
	}

	return BookingNotification{
		BookingID: b.ID,
		Event:     event,
		Envelope:  EmailEnvelope{To: to, Subject: subject, Body: body},
		SentAt:    time.Now().UTC(),
	}
}

func newBookingEventTask(n BookingNotification) (*asynq.Task, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal booking notification: %w", err)
	}
	return asynq.NewTask(TaskBookingEvent, b, asynq.Queue(QueueEmails), asynq.MaxRetry(5)), nil
}
