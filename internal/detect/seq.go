package detect

import (
	"container/heap"
	"sync/atomic"
)

// seqGen hands out submission sequence numbers, starting at 1.
type seqGen struct {
	val atomic.Uint32
}

// next returns the next sequence number (monotonically increasing from 1).
func (s *seqGen) next() uint32 {
	return s.val.Add(1)
}

// sequencer restores submission order for results that complete out of order.
// It is only touched under the pool mutex.
type sequencer struct {
	expected uint32
	buffer   resultHeap
}

func newSequencer() *sequencer {
	return &sequencer{expected: 1}
}

// feed accepts one completed result and returns every result that can now be
// released in submission order. It returns nil while a gap is outstanding.
func (s *sequencer) feed(r Result) []Result {
	if r.Seq < s.expected {
		return nil
	}
	if r.Seq > s.expected {
		heap.Push(&s.buffer, r)
		return nil
	}

	out := []Result{r}
	s.expected++
	for s.buffer.Len() > 0 && s.buffer[0].Seq == s.expected {
		out = append(out, heap.Pop(&s.buffer).(Result))
		s.expected++
	}
	return out
}

// ---------------------------------------------------------------------------
// resultHeap implements a min-heap sorted by Seq.
// ---------------------------------------------------------------------------

type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Seq < h[j].Seq }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
