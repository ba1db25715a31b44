package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

func delta(id string) domain.LedgerDelta {
	return domain.LedgerDelta{
		IntentID: id,
		Kind:     domain.DeltaBuy,
		Symbol:   "AAPL",
		Wallet:   domain.Wallet{Balance: decimal.NewFromInt(100)},
		At:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBroadcaster_SubscribePublish(t *testing.T) {
	b := NewBroadcaster(2)
	ch := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	b.PublishDelta(delta("a"))
	b.PublishDelta(delta("b"))
	b.PublishDelta(delta("c")) // buffer full

	assert.Equal(t, "a", (<-ch).IntentID)
	assert.Equal(t, "b", (<-ch).IntentID)
	assert.Equal(t, uint64(1), b.Dropped())

	b.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	b.Unsubscribe(ch)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker down")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestKafkaPublisher_PreservesOrder(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 16, nil)

	for _, id := range []string{"1", "2", "3"} {
		p.PublishDelta(delta(id))
	}
	require.NoError(t, p.Close())
	p.PublishDelta(delta("late"))
	require.NoError(t, p.Close())

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.True(t, w.closed)
	require.Len(t, w.msgs, 3)
	for i, id := range []string{"1", "2", "3"} {
		var got domain.LedgerDelta
		require.NoError(t, json.Unmarshal(w.msgs[i].Value, &got))
		assert.Equal(t, id, got.IntentID)
		assert.Equal(t, "ledger", string(w.msgs[i].Key))
	}
}

func TestKafkaPublisher_WriteFailureDoesNotStop(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := newKafkaPublisher(w, 4, nil)
	p.PublishDelta(delta("1"))
	require.NoError(t, p.Close())

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.msgs)
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic", nil)
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", nil)
	assert.Error(t, err)
}

func TestMessage_Headers(t *testing.T) {
	msg, err := Message(delta("abc"))
	require.NoError(t, err)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "buy", string(msg.Headers[0].Value))
	assert.Equal(t, "abc", string(msg.Headers[1].Value))
	assert.Equal(t, delta("abc").At, msg.Time)
}

func TestMulti(t *testing.T) {
	a, b := NewBroadcaster(1), NewBroadcaster(1)
	cha, chb := a.Subscribe(), b.Subscribe()

	Multi{a, b}.PublishDelta(delta("x"))
	assert.Equal(t, "x", (<-cha).IntentID)
	assert.Equal(t, "x", (<-chb).IntentID)
}
