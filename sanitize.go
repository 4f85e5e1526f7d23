package paperback

import (
	"sort"
	"strings"
)

// translations maps characters outside the charset to ASCII stand-ins.
// Characters with no entry here degrade to the sanitizer's fallback byte.
var translations = map[rune]string{
	'“':  `"`,   // left double quote
	'”':  `"`,   // right double quote
	'‘':  "'",   // left single quote
	'’':  "'",   // right single quote
	'…':  "...", // ellipsis
	'—':  "---", // em dash
	'–':  "-",   // en dash
	'\t': "   ",
	'á':  "a'",
	'é':  "e'",
	'è':  "e`",
	'â':  "a",
	'ï':  "ii",
	'ç':  "c,",
	'№':  "No",
}

// inCharset reports whether r belongs to the restricted alphabet the
// grammar builder accepts: printable ASCII plus newline.
func inCharset(r rune) bool {
	return r == '\n' || (r >= 0x20 && r <= 0x7E)
}

// firstOutsideCharset returns the byte offset of the first rune in s
// outside the restricted charset, or -1 if s is clean.
func firstOutsideCharset(s string) int {
	for i, r := range s {
		if !inCharset(r) {
			return i
		}
	}
	return -1
}

// Sanitizer rewrites arbitrary text into the restricted charset.
//
// Characters already in the charset pass through. Characters with a known
// transliteration are substituted. Everything else becomes Fallback, or is
// dropped when Fallback is zero. Sanitize never fails: unknown input
// degrades, it does not abort.
type Sanitizer struct {
	Fallback byte
	Loud     bool // collect the distinct set of untranslatable characters

	unknown map[rune]struct{}
}

// Sanitize returns text restricted to the charset.
func (s *Sanitizer) Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if inCharset(r) {
			b.WriteRune(r)
			continue
		}
		if sub, ok := translations[r]; ok {
			b.WriteString(sub)
			continue
		}
		if s.Loud {
			if s.unknown == nil {
				s.unknown = make(map[rune]struct{})
			}
			s.unknown[r] = struct{}{}
		}
		if s.Fallback != 0 {
			b.WriteByte(s.Fallback)
		}
	}
	return b.String()
}

// Unknown returns the distinct untranslatable characters seen so far,
// sorted. Empty unless Loud is set.
func (s *Sanitizer) Unknown() []rune {
	if len(s.unknown) == 0 {
		return nil
	}
	out := make([]rune, 0, len(s.unknown))
	for r := range s.unknown {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sanitize is a convenience wrapper for one-off sanitization.
func Sanitize(text string, fallback byte) string {
	s := Sanitizer{Fallback: fallback}
	return s.Sanitize(text)
}
