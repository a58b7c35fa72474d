package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func push(t *testing.T, q *Queue, id string, priority uint64) {
	t.Helper()
	if err := q.Push(&WorkUnit{ID: id, Priority: priority}); err != nil {
		t.Fatalf("Push(%s): %v", id, err)
	}
}

func ids(units []*WorkUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.ID
	}
	return out
}

func TestQueue_Order(t *testing.T) {
	tests := []struct {
		name   string
		pushes []WorkUnit
		want   []string
	}{
		{
			name:   "newest age first",
			pushes: []WorkUnit{{ID: "page 3", Priority: 1}, {ID: "page 4", Priority: 2}, {ID: "page 5", Priority: 3}},
			want:   []string{"page 5", "page 4", "page 3"},
		},
		{
			name:   "ties go to the latest push",
			pushes: []WorkUnit{{ID: "a", Priority: 7}, {ID: "b", Priority: 7}, {ID: "c", Priority: 7}},
			want:   []string{"c", "b", "a"},
		},
		{
			name:   "out of order pushes",
			pushes: []WorkUnit{{ID: "mid", Priority: 5}, {ID: "new", Priority: 9}, {ID: "old", Priority: 1}},
			want:   []string{"new", "mid", "old"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			for _, u := range tt.pushes {
				push(t, q, u.ID, u.Priority)
			}
			got := ids(q.Drain())
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
			if q.Len() != 0 {
				t.Errorf("Len after Drain = %d", q.Len())
			}
		})
	}
}

func TestQueue_SettledPageJumpsBacklog(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 100; i++ {
		push(t, q, fmt.Sprintf("page %d", i), uint64(i+1))
	}
	push(t, q, "current", 101)

	done := make(chan struct{})
	defer close(done)
	if unit := q.Pop(done); unit == nil || unit.ID != "current" {
		t.Fatalf("Pop = %+v, want current", unit)
	}
}

func TestQueue_Stats(t *testing.T) {
	q := NewQueue()
	if st := q.Stats(); st != (QueueStats{}) {
		t.Errorf("empty Stats = %+v", st)
	}

	push(t, q, "1", 4)
	push(t, q, "2", 9)
	push(t, q, "3", 2)

	want := QueueStats{Depth: 3, Newest: 9, Oldest: 2}
	if st := q.Stats(); st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
}

func TestQueue_PushNil(t *testing.T) {
	q := NewQueue()
	if err := q.Push(nil); err != ErrNilWorkUnit {
		t.Errorf("Push(nil) = %v, want ErrNilWorkUnit", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d", q.Len())
	}
}

func TestQueue_PopWaits(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})
	defer close(done)

	got := make(chan *WorkUnit, 1)
	go func() { got <- q.Pop(done) }()

	select {
	case u := <-got:
		t.Fatalf("Pop returned %+v before any push", u)
	case <-time.After(10 * time.Millisecond):
	}

	push(t, q, "late", 1)
	select {
	case u := <-got:
		if u == nil || u.ID != "late" {
			t.Errorf("Pop = %+v, want late", u)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on push")
	}
}

func TestQueue_PopDone(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})

	got := make(chan *WorkUnit, 1)
	go func() { got <- q.Pop(done) }()
	close(done)

	select {
	case u := <-got:
		if u != nil {
			t.Errorf("Pop after done = %+v, want nil", u)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after done closed")
	}
}

func TestQueue_ConsumersShareWakeups(t *testing.T) {
	q := NewQueue()
	done := make(chan struct{})

	const consumers = 10
	const units = 5

	results := make(chan *WorkUnit, consumers)
	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Pop(done)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	for i := 0; i < units; i++ {
		push(t, q, fmt.Sprintf("unit %d", i), 1)
	}

	deadline := time.Now().Add(time.Second)
	for len(results) < units && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(done)
	wg.Wait()
	close(results)

	served, idle := 0, 0
	for u := range results {
		if u != nil {
			served++
		} else {
			idle++
		}
	}
	if served != units || idle != consumers-units {
		t.Errorf("served %d idle %d, want %d and %d", served, idle, units, consumers-units)
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := NewQueue()

	var wg sync.WaitGroup
	for p := 0; p < 5; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if err := q.Push(&WorkUnit{ID: fmt.Sprintf("%d-%d", p, i), Priority: uint64(i)}); err != nil {
					t.Errorf("Push: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()

	units := q.Drain()
	if len(units) != 500 {
		t.Fatalf("drained %d units, want 500", len(units))
	}
	for i := 1; i < len(units); i++ {
		if units[i].Priority > units[i-1].Priority {
			t.Fatalf("priority %d after %d", units[i].Priority, units[i-1].Priority)
		}
	}
}
