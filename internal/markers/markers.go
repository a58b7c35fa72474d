// Package markers holds sparse, page-keyed records such as table of contents
// entries and favorites, with nearest-entry navigation in either direction.
package markers

import (
	"slices"
	"sync"

	"github.com/jackzampolin/lectern/internal/lookup"
)

// Direction selects which way Next searches from the current page.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// ParseDirection maps "forward"/"next" and "backward"/"prev" to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "forward", "next", "":
		return Forward, true
	case "backward", "back", "prev", "previous":
		return Backward, true
	}
	return Forward, false
}

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Collection is a sorted mapping from page number to one or more records.
// Safe for concurrent use.
type Collection[V any] struct {
	mu      sync.RWMutex
	keys    []int // sorted, unique
	records map[int][]V
}

// NewCollection creates an empty collection.
func NewCollection[V any]() *Collection[V] {
	return &Collection[V]{records: make(map[int][]V)}
}

// Add appends a record under page.
func (c *Collection[V]) Add(page int, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[page]; !ok {
		i := lookup.LowerBound(c.keys, page)
		if i == lookup.NotFound {
			i = 0
		}
		c.keys = slices.Insert(c.keys, i, page)
	}
	c.records[page] = append(c.records[page], v)
}

// Remove drops every record under page. Returns false if there were none.
func (c *Collection[V]) Remove(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[page]; !ok {
		return false
	}
	delete(c.records, page)
	i := lookup.LowerBound(c.keys, page)
	c.keys = slices.Delete(c.keys, i, i+1)
	return true
}

// Exact returns the records stored under page.
func (c *Collection[V]) Exact(page int) []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records[page])
}

// Has reports whether any record is stored under page.
func (c *Collection[V]) Has(page int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[page]
	return ok
}

// Keys returns the marked pages in ascending order.
func (c *Collection[V]) Keys() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.keys)
}

// Len returns the number of distinct marked pages.
func (c *Collection[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// AtOrBefore returns the nearest marked page at or before page, with its records.
func (c *Collection[V]) AtOrBefore(page int) (int, []V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := lookup.LowerBound(c.keys, page)
	switch {
	case i == lookup.NotFound:
		return 0, nil, false
	case i < len(c.keys) && c.keys[i] == page:
	default:
		i--
	}
	if i < 0 {
		return 0, nil, false
	}
	key := c.keys[i]
	return key, slices.Clone(c.records[key]), true
}

// Next returns the nearest marked page strictly after (Forward) or strictly
// before (Backward) page. A mark on page itself is skipped.
func (c *Collection[V]) Next(page int, dir Direction) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := lookup.LowerBound(c.keys, page)
	if i == lookup.NotFound {
		return 0, false
	}

	if dir == Backward {
		// keys[i] >= page, so everything before i is strictly smaller
		if i == 0 {
			return 0, false
		}
		return c.keys[i-1], true
	}

	if i < len(c.keys) && c.keys[i] == page {
		i++
	}
	if i >= len(c.keys) {
		return 0, false
	}
	return c.keys[i], true
}
