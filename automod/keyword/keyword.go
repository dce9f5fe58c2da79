package keyword

import (
	"sort"
	"strings"

	"github.com/mychatmanager/chatmod/automod/helpers"
)

// Returns the first term that occurs as a case-insensitive substring of the text, or empty string.
//
// terms must already be folded and sorted, as returned by MergeTerms. Only the text is folded here.
func MatchTerm(text string, terms []string) string {
	if len(terms) == 0 || text == "" {
		return ""
	}
	folded := FoldText(text)
	for _, t := range terms {
		if t != "" && strings.Contains(folded, t) {
			return t
		}
	}
	return ""
}

// Merges term lists, folding and de-duplicating
func MergeTerms(lists ...[]string) []string {
	var folded []string
	for _, l := range lists {
		for _, t := range l {
			if t = FoldText(strings.TrimSpace(t)); t != "" {
				folded = append(folded, t)
			}
		}
	}
	out := helpers.DedupeStrings(folded)
	sort.Strings(out)
	return out
}
