package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dialAttempts   = 5
	publishTimeout = 5 * time.Second
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPRelay forwards every broker change to a durable topic exchange with
// routing key "{table}.{event}".
type AMQPRelay struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	pub      amqpPublisher
	exchange string
	stop     func()
}

// DialAMQP connects to url, retrying with exponential backoff, and declares
// the exchange.
func DialAMQP(url, exchange string) (*AMQPRelay, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 1; i <= dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Printf("relay: amqp dial attempt %d failed: %v", i, err)
		if i < dialAttempts {
			time.Sleep(time.Second * time.Duration(math.Pow(2, float64(i))))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect amqp after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Printf("relay: connected, exchange %q", exchange)
	return &AMQPRelay{conn: conn, ch: ch, pub: ch, exchange: exchange}, nil
}

// Start subscribes the relay to every table of b.
func (r *AMQPRelay) Start(b *Broker) error {
	stop, err := b.Subscribe(Subscription{Table: AllTables}, r.forward)
	if err != nil {
		return err
	}
	r.stop = stop
	return nil
}

func (r *AMQPRelay) forward(c Change) {
	body, err := json.Marshal(c)
	if err != nil {
		log.Printf("relay: marshal %s %s: %v", c.Table, c.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = r.pub.PublishWithContext(ctx, r.exchange, RoutingKey(c), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    c.At,
		Body:         body,
	})
	if err != nil {
		log.Printf("relay: publish %s: %v", RoutingKey(c), err)
	}
}

func RoutingKey(c Change) string {
	return c.Table + "." + string(c.Type)
}

// Close stops forwarding and releases the connection.
func (r *AMQPRelay) Close() {
	if r.stop != nil {
		r.stop()
	}
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	log.Println("relay: amqp connection closed")
}
