// Package util provides small shared helpers for hoyolab-auto.
package util

import (
	"strings"
	"unicode"
)

// Case names an identifier spelling convention.
type Case string

// Supported cases.
const (
	CaseKebab  Case = "kebab"  // dailies-reminder
	CaseSnake  Case = "snake"  // dailies_reminder
	CaseCamel  Case = "camel"  // dailiesReminder
	CasePascal Case = "pascal" // DailiesReminder
)

// ConvertCase rewrites s from one case convention to another.
// Unknown cases fall back to treating s as a single word.
func ConvertCase(s string, from, to Case) string {
	return joinWords(splitWords(s, from), to)
}

// ToCamel is shorthand for converting a kebab identifier to camel case.
func ToCamel(identifier string) string {
	return ConvertCase(identifier, CaseKebab, CaseCamel)
}

func splitWords(s string, c Case) []string {
	switch c {
	case CaseKebab:
		return nonEmpty(strings.Split(s, "-"))
	case CaseSnake:
		return nonEmpty(strings.Split(s, "_"))
	case CaseCamel, CasePascal:
		return splitMixed(s)
	default:
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

// splitMixed breaks "howlScratchCard" or "HTTPServer" into words.
func splitMixed(s string) []string {
	runes := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		cur, prev := runes[i], runes[i-1]
		boundary := unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev))
		// end of an acronym: "HTTPServer" splits before the "S"
		if !boundary && unicode.IsUpper(cur) && unicode.IsUpper(prev) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	if start < len(runes) {
		words = append(words, string(runes[start:]))
	}

	return words
}

func joinWords(words []string, c Case) string {
	switch c {
	case CaseKebab:
		return strings.ToLower(strings.Join(words, "-"))
	case CaseSnake:
		return strings.ToLower(strings.Join(words, "_"))
	case CaseCamel, CasePascal:
		var b strings.Builder
		for i, w := range words {
			w = strings.ToLower(w)
			if i == 0 && c == CaseCamel {
				b.WriteString(w)
				continue
			}
			b.WriteString(capitalize(w))
		}
		return b.String()
	default:
		return strings.Join(words, "")
	}
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])

	return string(r)
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}
