package lexical

import (
	"strings"
	"unicode"
)

// Tokenize lowercases the text and splits it into word tokens of Latin and
// Cyrillic letters, digits and underscore. Everything else is a separator.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if isTokenRune(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	case r >= 'а' && r <= 'я', r == 'ё':
		return true
	default:
		return false
	}
}
