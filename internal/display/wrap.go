package display

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/muesli/reflow/wordwrap"
)

const DefaultWidth = 80

// Wrap word-wraps text to DefaultWidth, preserving ANSI escape sequences.
func Wrap(text string) string {
	return WrapTo(text, DefaultWidth)
}

// WrapTo word-wraps text to width. Existing line breaks are kept.
func WrapTo(text string, width int) string {
	return strings.TrimRight(wordwrap.String(text, width), " ")
}

// Capitalize returns s with its first letter uppercased.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
