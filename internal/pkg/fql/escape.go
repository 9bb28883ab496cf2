package fql

import "strings"

// EscapePhrase prepares text for embedding inside a double-quoted phrase
// by backslash-escaping every backslash and double quote.
func EscapePhrase(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// UnescapePhrase reverses EscapePhrase. A trailing lone backslash is kept
// as-is.
func UnescapePhrase(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
