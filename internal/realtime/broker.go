// Package realtime is the in-process change feed. Services publish row
// changes; subscribers receive the ones matching their table, event and
// equality filter on a goroutine of their own.
package realtime

import (
	"errors"
	"log"
	"slices"
	"sync"
	"time"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

func (e EventType) Valid() bool {
	switch e {
	case EventInsert, EventUpdate, EventDelete:
		return true
	}
	return false
}

// AllTables subscribes to every table.
const AllTables = "*"

// Change is a single row mutation. Keys holds the filterable columns of the
// row (ids and foreign keys) as strings.
type Change struct {
	Table  string            `json:"table"`
	Type   EventType         `json:"event"`
	Record any               `json:"record"`
	Keys   map[string]string `json:"-"`
	At     time.Time         `json:"at"`
}

type Subscription struct {
	Table  string
	Events []EventType // empty means all
	Filter Filter
}

func (s Subscription) matches(c Change) bool {
	if s.Table != AllTables && s.Table != c.Table {
		return false
	}
	if len(s.Events) > 0 && !slices.Contains(s.Events, c.Type) {
		return false
	}
	return s.Filter.Matches(c.Keys)
}

// Publisher is what services depend on to emit changes.
type Publisher interface {
	Publish(c Change)
}

var ErrClosed = errors.New("realtime: broker closed")

const defaultQueueSize = 64

type subscriber struct {
	id    uint64
	sub   Subscription
	queue chan Change
	done  chan struct{}
}

// Broker fans published changes out to matching subscribers. Each
// subscriber has a bounded queue; when it is full the change is dropped for
// that subscriber only.
type Broker struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscriber
	nextID    uint64
	closed    bool
	queueSize int
}

func NewBroker(queueSize int) *Broker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Broker{
		subs:      make(map[uint64]*subscriber),
		queueSize: queueSize,
	}
}

var _ Publisher = (*Broker)(nil)

// Subscribe registers fn for changes matching sub. The returned function
// removes the subscription; it is safe to call more than once and returns
// after the delivery goroutine has stopped. It must not be called from fn.
func (b *Broker) Subscribe(sub Subscription, fn func(Change)) (func(), error) {
	if sub.Table == "" {
		return nil, errors.New("realtime: subscription table is required")
	}
	for _, e := range sub.Events {
		if !e.Valid() {
			return nil, errors.New("realtime: unknown event " + string(e))
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.nextID++
	s := &subscriber{
		id:    b.nextID,
		sub:   sub,
		queue: make(chan Change, b.queueSize),
		done:  make(chan struct{}),
	}
	b.subs[s.id] = s
	b.mu.Unlock()

	go func() {
		defer close(s.done)
		for c := range s.queue {
			fn(c)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[s.id]; ok {
				delete(b.subs, s.id)
				close(s.queue)
			}
			b.mu.Unlock()
			<-s.done
		})
	}, nil
}

// Publish delivers c to every matching subscriber without blocking.
func (b *Broker) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if !s.sub.matches(c) {
			continue
		}
		select {
		case s.queue <- c:
		default:
			log.Printf("realtime: subscriber %d queue full, dropping %s %s", s.id, c.Table, c.Type)
		}
	}
}

// Len reports the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops every subscription and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	for _, s := range subs {
		close(s.queue)
	}
	b.mu.Unlock()

	for _, s := range subs {
		<-s.done
	}
}
