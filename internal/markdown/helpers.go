package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `\_*[]()~>#+-=|{}.!` + "`"

// EscapeV2 escapes every character that has a meaning in Telegram MarkdownV2,
// so the result renders as the literal input.
func EscapeV2(input string) string {
	lookup := mdV2SpecialCharLookup()
	charsToEscape := 0

	for i := range len(input) {
		if lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// Bold returns text escaped and wrapped as MarkdownV2 bold.
func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

func mdV2SpecialCharLookup() [256]bool {
	var m [256]bool
	for _, c := range []byte(mdV2SpecialChars) {
		m[c] = true
	}
	return m
}
