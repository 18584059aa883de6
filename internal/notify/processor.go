package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// Processor handles booking notification tasks on the worker side.
type Processor struct {
	mailer Mailer
}

func NewProcessor(m Mailer) *Processor {
	return &Processor{mailer: m}
}

// Register binds the processor's handlers on mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskBookingEvent, p.HandleBookingEvent)
}

func (p *Processor) HandleBookingEvent(ctx context.Context, t *asynq.Task) error {
	var n BookingNotification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		// A malformed payload never succeeds on retry.
		return fmt.Errorf("decode %s: %v: %w", TaskBookingEvent, err, asynq.SkipRetry)
	}
	if err := p.mailer.Send(ctx, n.Envelope); err != nil {
		log.Printf("notify: %s booking=%s send failed: %v", n.Event, n.BookingID, err)
		return err
	}
	log.Printf("notify: %s sent booking=%s to=%s", n.Event, n.BookingID, n.Envelope.To)
	return nil
}

// NewServer builds the asynq worker server for the emails queue.
func NewServer(redisAddr string, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueEmails: 10,
		},
	})
}
