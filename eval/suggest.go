package eval

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// suggest returns a did-you-mean suffix for an undefined macro name, or the
// empty string when nothing known is close enough. Candidates are every
// definition, builtin, and alias.
func (ev *evaluator) suggest(name string) string {
	maxDist := 2
	switch runes := utf8.RuneCountInString(name); {
	case runes <= 2:
		return ""
	case runes <= 4:
		maxDist = 1
	}

	candidates := append(ev.reg.Names(), builtinNames()...)
	sort.Strings(candidates)
	best, bestDist := "", maxDist+1
	for _, c := range candidates {
		if c == name {
			continue
		}
		if d := fuzzy.LevenshteinDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean '%s'?)", best)
}
