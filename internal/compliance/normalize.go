package compliance

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalizedText is document text reduced to lowercase word tokens separated by
// single spaces. starts and ends map every byte of text back to the byte range
// of the original rune it came from.
type normalizedText struct {
	text   string
	starts []int
	ends   []int
}

// normalize applies the matching policy: NFKC per rune, Unicode case folding,
// every rune that is not a letter, digit, or combining mark becomes a separator,
// and separator runs collapse into one space with none leading or trailing.
func normalize(s string) normalizedText {
	caser := cases.Fold()

	var b strings.Builder
	b.Grow(len(s))
	starts := make([]int, 0, len(s))
	ends := make([]int, 0, len(s))

	pendingSpace := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		end := i + size

		folded := caser.String(norm.NFKC.String(string(r)))
		for _, fr := range folded {
			if !isWordRune(fr) {
				pendingSpace = true
				continue
			}
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
				starts = append(starts, i)
				ends = append(ends, i)
			}
			pendingSpace = false

			n, _ := b.WriteRune(fr)
			for k := 0; k < n; k++ {
				starts = append(starts, i)
				ends = append(ends, end)
			}
		}
		i = end
	}

	return normalizedText{text: b.String(), starts: starts, ends: ends}
}

// normalizePattern applies the same policy to an indicator phrase
func normalizePattern(p string) string {
	return normalize(p).text
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// find locates pattern on token boundaries and returns its byte range in the
// normalized text
func (n normalizedText) find(pattern string) (int, int, bool) {
	if pattern == "" || n.text == "" {
		return 0, 0, false
	}
	haystack := " " + n.text + " "
	needle := " " + pattern + " "
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return 0, 0, false
	}
	return idx, idx + len(pattern), true
}

// span converts a normalized byte range into a range of the original text
func (n normalizedText) span(start, end int) Span {
	return Span{Start: n.starts[start], End: n.ends[end-1]}
}
