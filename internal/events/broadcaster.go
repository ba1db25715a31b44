// Package events fans committed ledger deltas out to in-process subscribers and external brokers.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/vadiminshakov/papertrade/internal/domain"
)

// Broadcaster fans out deltas to all subscribers via buffered channels.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[chan domain.LedgerDelta]struct{}
	buffer  int
	dropped atomic.Uint64
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan domain.LedgerDelta]struct{}),
		buffer: buffer,
	}
}

// PublishDelta sends the delta to all subscribers, dropping it for a slow reader.
func (b *Broadcaster) PublishDelta(d domain.LedgerDelta) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- d:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel that receives deltas until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan domain.LedgerDelta {
	ch := make(chan domain.LedgerDelta, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan domain.LedgerDelta) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts deliveries skipped because a subscriber buffer was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
