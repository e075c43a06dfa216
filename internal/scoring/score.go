// Package scoring picks the translation to play for an episode
package scoring

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/justchokingaround/shikiplay/internal/catalog"
)

// rank orders candidates; fields are compared in declaration order
type rank struct {
	sameAuthors   bool
	similarAuthor bool
	sameType      bool
	sameKind      bool
	preferredType bool
	height        int
	priority      int
}

func (a rank) better(b rank) bool {
	flags := [...][2]bool{
		{a.sameAuthors, b.sameAuthors},
		{a.similarAuthor, b.similarAuthor},
		{a.sameType, b.sameType},
		{a.sameKind, b.sameKind},
		{a.preferredType, b.preferredType},
	}
	for _, f := range flags {
		if f[0] != f[1] {
			return f[0]
		}
	}
	if a.height != b.height {
		return a.height > b.height
	}
	return a.priority > b.priority
}

func normalizeAuthors(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// similar reports whether one author summary fuzzily contains the other
func similar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return len(fuzzy.Find(a, []string{b})) > 0 || len(fuzzy.Find(b, []string{a})) > 0
}

func rankOf(t *catalog.Translation, pref *catalog.Translation, preferredType string) rank {
	r := rank{
		preferredType: preferredType != "" && t.Type == preferredType,
		height:        t.Height,
		priority:      t.Priority,
	}
	if pref == nil {
		return r
	}

	authors, prefAuthors := normalizeAuthors(t.AuthorsSummary), normalizeAuthors(pref.AuthorsSummary)
	r.sameAuthors = authors != "" && authors == prefAuthors
	r.similarAuthor = !r.sameAuthors && similar(prefAuthors, authors)
	r.sameType = pref.Type != "" && t.Type == pref.Type
	r.sameKind = pref.TypeKind != "" && t.TypeKind == pref.TypeKind
	return r
}

// Best returns the best active translation of ep, or nil if there is none.
// pref is the translation last chosen for the series; ties keep list order.
func Best(ep *catalog.Episode, pref *catalog.Translation, preferredType string) *catalog.Translation {
	if ep == nil {
		return nil
	}

	var (
		best     *catalog.Translation
		bestRank rank
	)
	for i := range ep.Translations {
		t := &ep.Translations[i]
		if !t.IsActive {
			continue
		}
		// The exact translation picked before wins outright
		if pref != nil && t.ID == pref.ID {
			c := *t
			return &c
		}
		r := rankOf(t, pref, preferredType)
		if best == nil || r.better(bestRank) {
			best, bestRank = t, r
		}
	}
	if best == nil {
		return nil
	}
	c := *best
	return &c
}
