// Package textnorm normalizes instrument payload text for display and
// repeat-pattern matching: SCPI-style commands with embedded numeric
// arguments, reduced to a shape comparable across calls (e.g. "VOLT 5" and
// "VOLT 9" both normalize to "VOLT ?").
package textnorm

import "strings"

// Normalize collapses whitespace and replaces standalone numeric
// arguments with '?', leaving command keywords and trailing '?' query
// markers untouched. Unlike SQL text, instrument payloads carry no string
// literals or placeholder syntax, so this is considerably simpler than
// the query-normalization it is descended from.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	prevSpace := false
	for i < len(s) {
		ch := s[i]

		if isDigit(ch) && (i == 0 || isBoundary(s[i-1])) {
			if next, ok := normalizeNumber(&b, s, i); ok {
				i = next
				prevSpace = false
				continue
			}
		}

		if isSpace(ch) {
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
				prevSpace = true
			}
			i++
			continue
		}

		b.WriteByte(ch)
		i++
		prevSpace = false
	}

	return strings.TrimRight(b.String(), " \n\r\t")
}

// normalizeNumber replaces a numeric literal (digits and decimal points)
// at pos with '?'. Returns (newPos, true) if replaced, or (0, false) if
// the run at pos is not a standalone number. A leading sign is not a
// boundary, so a signed number such as "-5" is left unchanged.
func normalizeNumber(b *strings.Builder, s string, pos int) (int, bool) {
	j := pos
	for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
		j++
	}
	if j >= len(s) || isBoundary(s[j]) {
		b.WriteByte('?')
		return j, true
	}
	return 0, false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isBoundary(c byte) bool {
	return isSpace(c) ||
		c == ',' || c == ';' || c == ':' || c == '?' ||
		c == '(' || c == ')'
}
