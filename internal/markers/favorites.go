package markers

// Favorites is a set of bookmarked pages.
type Favorites struct {
	pages *Collection[struct{}]
}

// NewFavorites creates a set from the given pages. Duplicates are ignored.
func NewFavorites(pages ...int) *Favorites {
	f := &Favorites{pages: NewCollection[struct{}]()}
	for _, p := range pages {
		if !f.pages.Has(p) {
			f.pages.Add(p, struct{}{})
		}
	}
	return f
}

// Toggle adds page if absent, removes it otherwise. Returns the new state.
func (f *Favorites) Toggle(page int) bool {
	if f.pages.Remove(page) {
		return false
	}
	f.pages.Add(page, struct{}{})
	return true
}

// Contains reports whether page is a favorite.
func (f *Favorites) Contains(page int) bool {
	return f.pages.Has(page)
}

// Pages returns favorites in ascending order.
func (f *Favorites) Pages() []int {
	return f.pages.Keys()
}

// Next returns the next favorite from current in the given direction,
// skipping current itself.
func (f *Favorites) Next(current int, dir Direction) (int, bool) {
	return f.pages.Next(current, dir)
}
