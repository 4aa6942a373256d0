package slicerpdf

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes an entity or option label for matching.
//
// The result is NFKC-normalized (folding full/half-width and
// composed/decomposed variants, and mapping non-breaking spaces to ordinary
// ones), case folded, stripped of invisible format characters such as
// zero-width spaces, with every whitespace run collapsed to one ASCII space
// and no leading or trailing whitespace. Case is folded here, so callers
// compare normalized strings with ==.
//
// Normalize is idempotent and never fails; empty or all-whitespace input
// yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// Format characters go first so their removal cannot expose new
	// compositions to a later pass.
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	s = norm.NFKC.String(s)
	s = stableFold(s)
	return strings.Join(strings.Fields(s), " ")
}

// stableFold replaces every rune that case folding keeps mapping back and
// forth (the Cherokee letters) by the smallest rune of its cycle. Folding
// the result and applying stableFold again then yields the same string.
func stableFold(s string) string {
	if cases.Fold().String(s) == s {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteString(foldCycle(r))
	}
	return b.String()
}

func foldCycle(r rune) string {
	if r < utf8.RuneSelf {
		return string(r)
	}
	cur, lo := string(r), r
	for range 4 {
		next := cases.Fold().String(cur)
		if next == cur {
			return cur
		}
		nr, size := utf8.DecodeRuneInString(next)
		if size != len(next) {
			// Folds to several runes; not a cycle.
			return cur
		}
		if nr == r {
			return string(lo)
		}
		lo = min(lo, nr)
		cur = next
	}
	return cur
}

// SameName reports whether a and b normalize to the same non-empty value.
func SameName(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
