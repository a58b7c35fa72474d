package markers

import "strings"

// TOCEntry is one table of contents line.
type TOCEntry struct {
	Page  int    `json:"page" yaml:"page"`
	Title string `json:"title" yaml:"title"`
}

// TOC resolves page descriptions from table of contents entries.
type TOC struct {
	entries *Collection[string]
}

// NewTOC creates a TOC from entries in any order.
func NewTOC(entries ...TOCEntry) *TOC {
	t := &TOC{entries: NewCollection[string]()}
	for _, e := range entries {
		t.Add(e.Page, e.Title)
	}
	return t
}

// Add registers a title at page.
func (t *TOC) Add(page int, title string) {
	t.entries.Add(page, title)
}

// DescriptionFor returns the title of the nearest entry at or before page.
// Several titles on the same page are joined with " / ".
func (t *TOC) DescriptionFor(page int) (string, bool) {
	_, titles, ok := t.entries.AtOrBefore(page)
	if !ok || len(titles) == 0 {
		return "", false
	}
	return strings.Join(titles, " / "), true
}

// Entries returns every entry in page order.
func (t *TOC) Entries() []TOCEntry {
	var out []TOCEntry
	for _, page := range t.entries.Keys() {
		for _, title := range t.entries.Exact(page) {
			out = append(out, TOCEntry{Page: page, Title: title})
		}
	}
	return out
}

// Len returns the number of pages carrying a TOC entry.
func (t *TOC) Len() int {
	return t.entries.Len()
}
