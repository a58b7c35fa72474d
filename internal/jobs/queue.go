package jobs

import (
	"container/heap"
	"errors"
	"sync"
)

// ErrNilWorkUnit is returned when a nil unit (or one without Run) is queued.
var ErrNilWorkUnit = errors.New("cannot queue nil work unit")

// Queue holds units waiting for a worker, newest request first. Units with
// equal Priority come out in reverse push order, so a page asked for again
// is served before the backlog it joined.
type Queue struct {
	mu     sync.Mutex
	units  unitHeap
	pushes uint64
	wake   chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push queues a unit. It never blocks.
func (q *Queue) Push(unit *WorkUnit) error {
	if unit == nil {
		return ErrNilWorkUnit
	}

	q.mu.Lock()
	q.pushes++
	heap.Push(&q.units, queued{unit: unit, order: q.pushes})
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop returns the newest unit, waiting until one is queued. It returns nil
// once done is closed.
func (q *Queue) Pop(done <-chan struct{}) *WorkUnit {
	for {
		if unit, more := q.pop(); unit != nil {
			// Workers share one wakeup; hand it on while units remain.
			if more {
				q.signal()
			}
			return unit
		}

		select {
		case <-done:
			return nil
		case <-q.wake:
		}
	}
}

func (q *Queue) pop() (*WorkUnit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.units) == 0 {
		return nil, false
	}
	item := heap.Pop(&q.units).(queued)
	return item.unit, len(q.units) > 0
}

// Drain empties the queue and returns its units, newest first.
func (q *Queue) Drain() []*WorkUnit {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*WorkUnit, 0, len(q.units))
	for len(q.units) > 0 {
		out = append(out, heap.Pop(&q.units).(queued).unit)
	}
	return out
}

// Len returns the number of waiting units.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}

// QueueStats is the queue depth and the priority span still waiting.
type QueueStats struct {
	Depth  int    `json:"depth" yaml:"depth"`
	Newest uint64 `json:"newest" yaml:"newest"`
	Oldest uint64 `json:"oldest" yaml:"oldest"`
}

// Stats returns the current depth and priority span. Zero when empty.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := QueueStats{Depth: len(q.units)}
	if st.Depth == 0 {
		return st
	}
	st.Newest = q.units[0].unit.Priority
	st.Oldest = st.Newest
	for _, item := range q.units[1:] {
		st.Oldest = min(st.Oldest, item.unit.Priority)
	}
	return st
}

type queued struct {
	unit  *WorkUnit
	order uint64
}

// unitHeap is a max-heap on (Priority, order).
type unitHeap []queued

func (h unitHeap) Len() int { return len(h) }

func (h unitHeap) Less(i, j int) bool {
	if h[i].unit.Priority != h[j].unit.Priority {
		return h[i].unit.Priority > h[j].unit.Priority
	}
	return h[i].order > h[j].order
}

func (h unitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *unitHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *unitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queued{}
	*h = old[:n-1]
	return item
}
