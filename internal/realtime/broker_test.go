package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []Change
}

func (c *collector) add(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, ch)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("provider_id=eq.abc-123")
	require.NoError(t, err)
	assert.Equal(t, Filter{Column: "provider_id", Value: "abc-123"}, f)
	assert.Equal(t, "provider_id=eq.abc-123", f.String())

	zero, err := ParseFilter("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	for _, bad := range []string{"provider_id", "provider_id=neq.x", "Bad Col=eq.x", "id=eq."} {
		_, err := ParseFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestBrokerDeliversMatchingChanges(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()

	var mine, all collector
	unsubMine, err := b.Subscribe(Subscription{
		Table:  "bookings",
		Events: []EventType{EventInsert},
		Filter: Filter{Column: "provider_id", Value: "p1"},
	}, mine.add)
	require.NoError(t, err)
	unsubAll, err := b.Subscribe(Subscription{Table: AllTables}, all.add)
	require.NoError(t, err)

	b.Publish(Change{Table: "bookings", Type: EventInsert, Keys: map[string]string{"provider_id": "p1"}})
	b.Publish(Change{Table: "bookings", Type: EventInsert, Keys: map[string]string{"provider_id": "p2"}})
	b.Publish(Change{Table: "bookings", Type: EventUpdate, Keys: map[string]string{"provider_id": "p1"}})
	b.Publish(Change{Table: "messages", Type: EventInsert, Keys: map[string]string{"provider_id": "p1"}})

	unsubMine()
	unsubAll()

	assert.Equal(t, 1, mine.len())
	assert.Equal(t, 4, all.len())
	assert.Equal(t, 0, b.Len())
}

func TestBrokerPreservesOrder(t *testing.T) {
	b := NewBroker(16)
	defer b.Close()

	var c collector
	unsub, err := b.Subscribe(Subscription{Table: "messages"}, c.add)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b.Publish(Change{Table: "messages", Type: EventInsert, Record: i})
	}
	unsub()

	require.Len(t, c.got, 10)
	for i, ch := range c.got {
		assert.Equal(t, i, ch.Record)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()

	var c collector
	unsub, err := b.Subscribe(Subscription{Table: "messages"}, c.add)
	require.NoError(t, err)
	b.Publish(Change{Table: "messages", Type: EventInsert})
	unsub()
	unsub()

	b.Publish(Change{Table: "messages", Type: EventInsert})
	assert.Equal(t, 1, c.len())
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroker(8)

	release := make(chan struct{})
	slow, err := b.Subscribe(Subscription{Table: "t"}, func(Change) { <-release })
	require.NoError(t, err)

	var fast collector
	fastUnsub, err := b.Subscribe(Subscription{Table: "t"}, fast.add)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			b.Publish(Change{Table: "t", Type: EventInsert})
			time.Sleep(time.Millisecond)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	close(release)
	slow()
	fastUnsub()
	assert.GreaterOrEqual(t, fast.len(), 8)
	b.Close()
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker(0)
	_, err := b.Subscribe(Subscription{Table: "t"}, func(Change) {})
	require.NoError(t, err)

	b.Close()
	b.Close()
	assert.Equal(t, 0, b.Len())

	_, err = b.Subscribe(Subscription{Table: "t"}, func(Change) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscribeValidates(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()

	_, err := b.Subscribe(Subscription{}, func(Change) {})
	assert.Error(t, err)
	_, err = b.Subscribe(Subscription{Table: "t", Events: []EventType{"upsert"}}, func(Change) {})
	assert.Error(t, err)
}

type fakeAMQP struct {
	mu   sync.Mutex
	keys []string
	body [][]byte
}

func (f *fakeAMQP) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, exchange+":"+key)
	f.body = append(f.body, msg.Body)
	return nil
}

func TestAMQPRelayForwardsChanges(t *testing.T) {
	b := NewBroker(0)
	defer b.Close()

	fake := &fakeAMQP{}
	relay := &AMQPRelay{pub: fake, exchange: "marketplace.changes"}
	require.NoError(t, relay.Start(b))

	b.Publish(Change{Table: "bookings", Type: EventUpdate, Record: map[string]any{"id": "b1"}})
	relay.Close()

	require.Equal(t, []string{"marketplace.changes:bookings.update"}, fake.keys)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(fake.body[0], &decoded))
	assert.Equal(t, "bookings", decoded["table"])
	assert.Equal(t, "update", decoded["event"])
}
