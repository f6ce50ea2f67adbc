package events

import (
	"sync"

	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/ledger"
)

// BalanceEvent is published after every ledger mutation.
type BalanceEvent = domain.BalanceChange

// BalanceBroadcaster fans out events to all subscribers via buffered channels.
type BalanceBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan BalanceEvent]struct{}
	buffer int
}

// NewBalanceBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBalanceBroadcaster(buffer int) *BalanceBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &BalanceBroadcaster{
		subs:   make(map[chan BalanceEvent]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping if a reader is slow.
func (b *BalanceBroadcaster) Publish(e BalanceEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// PublishChange converts a ledger change; meant to be registered with Ledger.OnChange.
func (b *BalanceBroadcaster) PublishChange(c ledger.Change) {
	b.Publish(c.Record())
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *BalanceBroadcaster) Subscribe() chan BalanceEvent {
	ch := make(chan BalanceEvent, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *BalanceBroadcaster) Unsubscribe(ch chan BalanceEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *BalanceBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
