// Package lookup provides ordered-search helpers over sorted key sequences.
package lookup

import "cmp"

// NotFound is returned by LowerBound for an empty sequence.
// It is distinct from len(keys), which means the query exceeds every key.
const NotFound = -1

// LowerBound returns the smallest index i such that keys[i] >= q.
// keys must be non-decreasing; duplicates are allowed.
//
// Returns len(keys) when q is greater than every key, and NotFound when
// keys is empty. Callers derive the nearest preceding entry by stepping
// back one index and the nearest following entry by using the result directly.
func LowerBound[T cmp.Ordered](keys []T, q T) int {
	if len(keys) == 0 {
		return NotFound
	}

	lo, hi := 0, len(keys)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if keys[mid] < q {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
