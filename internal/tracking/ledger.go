// Package tracking implements the chat-channel protocol for both roles: the
// server pings and scores coordinate reports, the client answers every
// message with its latest detection or a pong.
package tracking

import (
	"sync"

	"github.com/gammazero/deque"
)

// LedgerCapacity bounds the number of outstanding pings remembered.
const LedgerCapacity = 8

// ledger pairs outstanding pings with the animation tick current when each
// was sent. Replies consume entries oldest first.
type ledger struct {
	mu      sync.Mutex
	ticks   *deque.Deque[int]
	evicted int
}

func newLedger() *ledger {
	return &ledger{ticks: deque.New[int](LedgerCapacity)}
}

// record remembers tick for a ping about to be sent, forgetting the oldest
// outstanding ping when full.
func (l *ledger) record(tick int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ticks.Len() >= LedgerCapacity {
		l.ticks.PopFront()
		l.evicted++
	}
	l.ticks.PushBack(tick)
}

// consume returns the tick of the oldest outstanding ping.
func (l *ledger) consume() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ticks.Len() == 0 {
		return 0, false
	}
	return l.ticks.PopFront(), true
}

func (l *ledger) outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ticks.Len()
}
