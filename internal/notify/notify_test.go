package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if info, ok := args.Get(0).(*asynq.TaskInfo); ok {
		return info, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, env EmailEnvelope) error {
	return m.Called(ctx, env).Error(0)
}

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		ID:             "b1",
		CustomerName:   "Ann",
		ServiceAddress: "1 Main St",
		BookingDate:    "2026-03-01",
		BookingTime:    "10:00",
		Urgency:        domain.UrgencyNormal,
		ServiceTitle:   "Plumbing",
	}
}

func TestNewBookingNotification(t *testing.T) {
	n := NewBookingNotification(EventBookingCreated, sampleBooking(), "pro@example.com")
	assert.Equal(t, "b1", n.BookingID)
	assert.Equal(t, "pro@example.com", n.Envelope.To)
	assert.Equal(t, "New booking request", n.Envelope.Subject)
	assert.Contains(t, n.Envelope.Body, "Ann requested Plumbing on 2026-03-01 at 10:00")

	ev, ok := EventForStatus(domain.BookingPending)
	assert.False(t, ok)
	assert.Empty(t, ev)
	ev, ok = EventForStatus(domain.BookingCancelled)
	assert.True(t, ok)
	assert.Equal(t, EventBookingCancelled, ev)
}

func TestAsynqNotifierEnqueues(t *testing.T) {
	q := &mockEnqueuer{}
	n := &AsynqNotifier{q: q}

	q.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p BookingNotification
		return task.Type() == TaskBookingEvent &&
			json.Unmarshal(task.Payload(), &p) == nil &&
			p.BookingID == "b1" && p.Envelope.To == "pro@example.com"
	})).Return(&asynq.TaskInfo{ID: "t1"}, nil).Once()

	err := n.BookingEvent(context.Background(), NewBookingNotification(EventBookingCreated, sampleBooking(), "pro@example.com"))
	require.NoError(t, err)
	q.AssertExpectations(t)

	t.Run("EmptyRecipient", func(t *testing.T) {
		err := n.BookingEvent(context.Background(), NewBookingNotification(EventBookingCreated, sampleBooking(), ""))
		assert.Error(t, err)
	})

	t.Run("EnqueueFailure", func(t *testing.T) {
		q := &mockEnqueuer{}
		q.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
		n := &AsynqNotifier{q: q}
		err := n.BookingEvent(context.Background(), NewBookingNotification(EventBookingConfirmed, sampleBooking(), "c@example.com"))
		assert.ErrorContains(t, err, "redis down")
	})
}

func TestProcessorHandleBookingEvent(t *testing.T) {
	m := &mockMailer{}
	p := NewProcessor(m)

	bn := NewBookingNotification(EventBookingConfirmed, sampleBooking(), "c@example.com")
	payload, err := json.Marshal(bn)
	require.NoError(t, err)

	m.On("Send", mock.Anything, bn.Envelope).Return(nil).Once()
	require.NoError(t, p.HandleBookingEvent(context.Background(), asynq.NewTask(TaskBookingEvent, payload)))
	m.AssertExpectations(t)

	err = p.HandleBookingEvent(context.Background(), asynq.NewTask(TaskBookingEvent, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	m.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	assert.Error(t, p.HandleBookingEvent(context.Background(), asynq.NewTask(TaskBookingEvent, payload)))
}

func TestSMTPMailer(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"})
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, []string{"c@example.com"}, to)
		return nil
	}

	err := m.Send(context.Background(), EmailEnvelope{To: "c@example.com", Subject: "Hi\nthere", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Hi there\r\n")
	assert.True(t, strings.HasSuffix(msg, "line1\r\nline2\r\n"))
}
