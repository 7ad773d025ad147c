package repair

/*
			JSON Repair Pipeline
	LLMs routinely hand back JSON wrapped in markdown fences, littered with
	\uXXXX escapes, trailed by prose, or missing the comma between a nested
	object and the next key. The stages here rewrite that text into the most
	plausible single well-formed object without ever failing: each stage is a
	pure total function and the worst case result is "{}".

	Stage order is fixed and behaviour-relevant:
	  1. stripMarkdownFences
	  2. unescapeUnicode
	  3. extractObject
	  4. insertMissingCommas
	  5. validateAndBalance

	NOTE: the brace scan in extractObject does not special-case braces inside
	quoted string values. Inputs with literal '{' or '}' in string content are
	mis-segmented. Hardening the scan would change behaviour on inputs the
	rest of the pipeline already handles, so the gap is kept deliberately.
*/

import (
	"regexp"
	"strconv"
	"strings"
)

var unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// Options toggles the optional repair stages. The zero value disables them;
// use DefaultOptions for the full pipeline.
type Options struct {
	UnicodeFix bool
	FormatFix  bool
	FuzzyFix   bool
}

func DefaultOptions() Options {
	return Options{
		UnicodeFix: true,
		FormatFix:  true,
		FuzzyFix:   true,
	}
}

// Repair runs the full pipeline over raw text and always returns a string.
func Repair(raw string) string {
	return RepairWith(raw, DefaultOptions())
}

// RepairWith runs the pipeline with specific stages enabled.
func RepairWith(raw string, opts Options) string {
	result := stripMarkdownFences(raw)

	if opts.UnicodeFix {
		result = unescapeUnicode(result)
	}

	result = extractObject(result)

	if opts.FormatFix {
		result = insertMissingCommas(result)
	}

	if opts.FuzzyFix {
		result = validateAndBalance(result)
	}

	return result
}

// IsBalanced reports whether open and close brace counts match between the
// first '{' and the last '}'. It validates structure only, not content.
func IsBalanced(text string) bool {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')

	if start == -1 || end == -1 || end <= start {
		return false
	}

	region := text[start : end+1]
	return strings.Count(region, "{") == strings.Count(region, "}")
}

func stripMarkdownFences(text string) string {
	trimmed := strings.TrimSpace(text)

	var content string
	switch {
	case strings.HasPrefix(trimmed, "```json"):
		content = strings.TrimPrefix(trimmed, "```json")
	case strings.HasPrefix(trimmed, "```"):
		content = strings.TrimPrefix(trimmed, "```")
	default:
		return trimmed
	}

	if end := strings.LastIndex(content, "```"); end != -1 {
		content = content[:end]
	}
	return strings.TrimSpace(content)
}

// unescapeUnicode decodes \uXXXX escapes in place. The standard JSON string
// escapes (\" \n \t \\) are legitimate string content and must survive, so
// only the numeric escapes are rewritten.
func unescapeUnicode(text string) string {
	return unicodeEscape.ReplaceAllStringFunc(text, func(match string) string {
		code, err := strconv.ParseUint(match[2:], 16, 32)
		if err != nil {
			return match
		}
		return string(rune(code))
	})
}

// extractObject cuts the first balanced object out of surrounding prose by
// counting brace depth from the first '{'. When the text runs out before the
// object closes, one '}' is appended per unmatched opener.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "{}"
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return text[start:] + strings.Repeat("}", depth)
}

// insertMissingCommas fixes the single most common LLM mistake: a '}'
// followed directly by the next key's opening quote. It is deliberately not
// a general JSON fixer.
func insertMissingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 4)

	for i := 0; i < len(text); i++ {
		b.WriteByte(text[i])
		if text[i] == '}' && i+1 < len(text) && text[i+1] == '"' && i > 0 && text[i-1] != ',' {
			b.WriteByte(',')
		}
	}

	return b.String()
}

func validateAndBalance(text string) string {
	if IsBalanced(text) {
		return text
	}

	result := fixBraceMismatch(text)
	if IsBalanced(result) {
		return result
	}

	return minimalFix(result)
}

// fixBraceMismatch balances brace counts: missing closers are appended,
// surplus closers are stripped from the end. Nesting mismatches inside the
// object are left for minimalFix.
func fixBraceMismatch(text string) string {
	opens := strings.Count(text, "{")
	closes := strings.Count(text, "}")

	switch {
	case opens > closes:
		return text + strings.Repeat("}", opens-closes)
	case closes > opens:
		result := text
		for i := 0; i < closes-opens; i++ {
			last := strings.LastIndexByte(result, '}')
			if last == -1 {
				break
			}
			result = result[:last] + result[last+1:]
		}
		return result
	default:
		return text
	}
}

func minimalFix(text string) string {
	result := strings.TrimSpace(text)
	start := strings.IndexByte(result, '{')
	if start != -1 {
		end := strings.LastIndexByte(result, '}')
		if end != -1 && end > start {
			return result[start : end+1]
		}
	}
	return "{}"
}
