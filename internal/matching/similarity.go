package matching

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// tokenAffinityFloor is the per-token ratio at which two tokens count as
// the same word with a typo. Below it the pair of names shares no word other
// than a legal form, and the token-set score is damped by the best token
// ratio.
const tokenAffinityFloor = 80.0

// legalForms are company-form words. Two names that share only these words
// have nothing distinctive in common.
var legalForms = map[string]bool{
	"ab": true, "ag": true, "bv": true, "co": true, "company": true,
	"corp": true, "corporation": true, "gmbh": true, "inc": true,
	"incorporated": true, "kg": true, "limited": true, "llc": true,
	"llp": true, "lp": true, "ltd": true, "nv": true, "oy": true,
	"plc": true, "pte": true, "pty": true, "sa": true, "sarl": true,
	"spa": true, "srl": true,
}

// indel prices a substitution as a deletion plus an insertion, which turns
// the edit distance into the indel distance used by the ratio.
var indel = levenshtein.NewParams().SubCost(2)

// Normalize prepares a company name for comparison: NFKC folding, lower
// case, apostrophes and periods removed ("O'Reilly" -> "oreilly",
// "Inc." -> "inc"), other punctuation and symbols turned into spaces and
// whitespace collapsed.
func Normalize(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '.' || r == '’':
			continue
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity scores two names in [0,100]. The score is symmetric, identical
// normalized names score 100, and names with nothing in common score near 0.
func Similarity(a, b string) float64 {
	return similarityNormalized(Normalize(a), Normalize(b))
}

// similarityNormalized is a token-set ratio over already normalized input.
//
// Tokens are de-duplicated and sorted, then split into the shared part and
// the part unique to each side. The best ratio among
// shared vs shared+onlyA, shared vs shared+onlyB and shared+onlyA vs
// shared+onlyB wins, except that a side with no unique tokens does not get
// the trivial 100 for its shared-vs-itself comparison. Containment therefore
// scores high ("acme corp" vs "acme corp ltd" = 81.82) without reaching exact.
func similarityNormalized(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	ta, tb := tokenSet(a), tokenSet(b)
	shared, onlyA, onlyB := splitTokens(ta, tb)

	sect := strings.Join(shared, " ")
	combinedA := strings.Join(append(append([]string{}, shared...), onlyA...), " ")
	combinedB := strings.Join(append(append([]string{}, shared...), onlyB...), " ")

	score := ratio(combinedA, combinedB)
	if len(onlyA) > 0 {
		score = math.Max(score, ratio(sect, combinedA))
	}
	if len(onlyB) > 0 {
		score = math.Max(score, ratio(sect, combinedB))
	}

	if affinity := bestTokenRatio(ta, tb); affinity < tokenAffinityFloor {
		score = score * affinity / 100
	}
	return round2(score)
}

// ratio is the normalized indel similarity of two strings in [0,100].
func ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	dist := levenshtein.Distance(a, b, indel)
	return 100 * float64(total-dist) / float64(total)
}

func tokenSet(s string) []string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	out := fields[:0]
	for i, f := range fields {
		if i == 0 || f != fields[i-1] {
			out = append(out, f)
		}
	}
	return out
}

// splitTokens merges two sorted, de-duplicated token lists.
func splitTokens(a, b []string) (shared, onlyA, onlyB []string) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			shared = append(shared, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)
	return shared, onlyA, onlyB
}

// bestTokenRatio is the highest ratio between a token of a and a token of b.
// A shared legal form is skipped so that it cannot stand in for a shared
// word.
func bestTokenRatio(a, b []string) float64 {
	best := 0.0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				if legalForms[x] {
					continue
				}
				return 100
			}
			best = math.Max(best, ratio(x, y))
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
