package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// Notifier hands booking notifications off for asynchronous delivery.
type Notifier interface {
	BookingEvent(ctx context.Context, n BookingNotification) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier enqueues TaskBookingEvent tasks on the emails queue.
type AsynqNotifier struct {
	client *asynq.Client
	q      enqueuer
}

func NewAsynqNotifier(redisAddr string) *AsynqNotifier {
	c := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &AsynqNotifier{client: c, q: c}
}

var _ Notifier = (*AsynqNotifier)(nil)

func (n *AsynqNotifier) BookingEvent(ctx context.Context, bn BookingNotification) error {
	if bn.Envelope.To == "" {
		return fmt.Errorf("booking notification %s: empty recipient", bn.BookingID)
	}
	task, err := newBookingEventTask(bn)
	if err != nil {
		return err
	}
	info, err := n.q.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskBookingEvent, err)
	}
	log.Printf("notify: enqueued %s booking=%s task=%s", bn.Event, bn.BookingID, info.ID)
	return nil
}

func (n *AsynqNotifier) Close() error {
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}

// NopNotifier drops notifications; used when no Redis is configured.
type NopNotifier struct{}

func (NopNotifier) BookingEvent(context.Context, BookingNotification) error { return nil }
