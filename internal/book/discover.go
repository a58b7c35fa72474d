package book

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	volumeSuffixRe = regexp.MustCompile(`-(\d+)\.pdf$`)
	titleSuffixRe  = regexp.MustCompile(`-\d+$`)
)

// SortVolumePaths orders volume files by their numeric suffix.
// e.g., ["book-2.pdf", "book-1.pdf", "book-10.pdf"] -> ["book-1.pdf", "book-2.pdf", "book-10.pdf"]
// Files without a suffix come first, alphabetically.
func SortVolumePaths(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := volumeSuffixRe.FindStringSubmatch(strings.ToLower(sorted[i]))
		mj := volumeSuffixRe.FindStringSubmatch(strings.ToLower(sorted[j]))

		// If both have numbers, sort numerically
		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			return ni < nj
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		return sorted[i] < sorted[j]
	})

	return sorted
}

// DeriveTitle extracts a title from a volume filename.
// e.g., "crusade-europe.pdf" -> "crusade-europe"
// e.g., "my-book-1.pdf" -> "my-book"
func DeriveTitle(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return titleSuffixRe.ReplaceAllString(name, "")
}
