package wordcount

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var countPrinter = message.NewPrinter(language.Japanese)

// FormatCount renders a character count for display, e.g. "2,645文字".
// Zero renders as the empty string.
func FormatCount(n int) string {
	if n <= 0 {
		return ""
	}
	return countPrinter.Sprintf("%d文字", n)
}
