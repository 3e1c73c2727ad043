package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reControl    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func collapseWhitespace(s string) string {
	return reWhitespace.ReplaceAllString(s, " ")
}

func stripControl(s string) string {
	return reControl.ReplaceAllString(s, "")
}

func truncate(limit int) Strategy {
	return func(s string) string {
		if len(s) <= limit {
			return s
		}
		return s[:limit]
	}
}

// SanitizeLabel normalizes short user-facing names (resource names).
func SanitizeLabel(input string) string {
	p := Pipeline{
		stripControl,
		collapseWhitespace,
		trim,
		truncate(100),
	}
	return p.Apply(input)
}

// SanitizeFreeText normalizes longer prose fields (descriptions, blocked-time
// reasons).
func SanitizeFreeText(input string) string {
	p := Pipeline{
		stripControl,
		collapseWhitespace,
		trim,
		truncate(500),
	}
	return p.Apply(input)
}
