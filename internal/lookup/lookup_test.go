package lookup

import (
	"sort"
	"testing"
)

func TestLowerBound(t *testing.T) {
	tests := []struct {
		name  string
		keys  []int
		query int
		want  int
	}{
		{"empty", nil, 5, NotFound},
		{"empty slice", []int{}, 0, NotFound},
		{"first of duplicates", []int{5, 5, 10}, 5, 0},
		{"between keys", []int{5, 5, 10}, 7, 2},
		{"exceeds all", []int{5, 5, 10}, 11, 3},
		{"below all", []int{5, 5, 10}, -3, 0},
		{"exact last", []int{5, 5, 10}, 10, 2},
		{"single match", []int{4}, 4, 0},
		{"single above", []int{4}, 9, 1},
		{"negative keys", []int{-2, 0, 3}, -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LowerBound(tt.keys, tt.query); got != tt.want {
				t.Errorf("LowerBound(%v, %d) = %d, want %d", tt.keys, tt.query, got, tt.want)
			}
		})
	}
}

func TestLowerBound_MatchesSortSearch(t *testing.T) {
	keys := []int{-4, -4, 0, 1, 1, 1, 7, 9, 9, 15}
	for q := -6; q <= 17; q++ {
		want := sort.SearchInts(keys, q)
		if got := LowerBound(keys, q); got != want {
			t.Errorf("query %d: got %d, want %d", q, got, want)
		}
	}
}

func TestLowerBound_Strings(t *testing.T) {
	keys := []string{"a", "c", "e"}
	if got := LowerBound(keys, "d"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}
