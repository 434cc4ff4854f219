package main

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const maxUsernameLen = 24

// strictPolicy strips every tag; names and chat are plain text.
var strictPolicy = bluemonday.StrictPolicy()

// sanitizeUsername strips markup and control characters and caps the length.
// An empty result is rejected by the game.
func sanitizeUsername(name string) string {
	s := plainText(name)
	if r := []rune(s); len(r) > maxUsernameLen {
		s = strings.TrimSpace(string(r[:maxUsernameLen]))
	}
	return s
}

// sanitizeMessage strips markup and control characters from chat text.
func sanitizeMessage(msg string) string {
	return plainText(msg)
}

func plainText(s string) string {
	if s == "" {
		return ""
	}
	s = strictPolicy.Sanitize(html.UnescapeString(s))
	s = html.UnescapeString(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
