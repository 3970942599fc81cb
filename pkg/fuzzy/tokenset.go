// Package fuzzy scores text similarity for dedup and lexical recall.
//
// TokenSetRatio reproduces the token_set_ratio scoring family: both strings
// are reduced to sorted word sets, and similarity is taken as the best score
// among the intersection paired against each full set. This makes the score
// robust to word order and to one string being a superset of the other
// ("Lives in Austin" vs "Lives in Austin, Texas" scores 100).
package fuzzy

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// Tokenize lowercases s and splits it into alphanumeric word tokens,
// discarding punctuation.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSetRatio returns a similarity score in [0, 100].
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(inter, " ")
	combinedA := joinNonEmpty(base, strings.Join(onlyA, " "))
	combinedB := joinNonEmpty(base, strings.Join(onlyB, " "))

	// The intersection compared against itself is 100; that only applies
	// when one token set contains the other.
	score := ratio(combinedA, combinedB)
	if base != "" {
		if s := ratio(base, combinedA); s > score {
			score = s
		}
		if s := ratio(base, combinedB); s > score {
			score = s
		}
	}
	return score
}

// ratio is the normalized levenshtein similarity scaled to 0-100.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
