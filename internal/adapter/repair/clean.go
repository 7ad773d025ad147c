package repair

import "strings"

// CleanText tidies a plain-text reply that is not expected to be JSON:
// markdown fences are dropped, \uXXXX escapes are decoded and surrounding
// whitespace is trimmed. Unlike Repair it never invents braces, so prose
// survives untouched.
func CleanText(raw string) string {
	cleaned := stripMarkdownFences(raw)
	cleaned = unescapeUnicode(cleaned)
	return strings.TrimSpace(cleaned)
}
