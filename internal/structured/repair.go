package structured

import (
	"regexp"
	"strings"
)

// Shape is the top-level JSON container a parse expects.
type Shape string

const (
	ShapeObject Shape = "object"
	ShapeArray  Shape = "array"
)

// Strategy is a single pure text-to-text repair step.
type Strategy struct {
	Name  string
	Apply func(string) string
}

// fenceLineRe matches a fence on a line of its own. Well-formed JSON never has
// one: newlines inside string values are escaped.
var fenceLineRe = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*\r?$")

// CleanupStrategies run before the first parse attempt.
func CleanupStrategies(shape Shape) []Strategy {
	return []Strategy{
		{Name: "strip_fences", Apply: StripFences},
		{Name: "crop_" + string(shape), Apply: cropFor(shape)},
		{Name: "join_broken_lines", Apply: JoinBrokenLines},
		{Name: "normalize_escapes", Apply: NormalizeEscapes},
	}
}

// RepairStrategies run once, after the first parse attempt failed.
func RepairStrategies() []Strategy {
	return []Strategy{
		{Name: "escape_interior_quotes", Apply: EscapeInteriorQuotes},
		{Name: "quote_bare_keys", Apply: QuoteBareKeys},
		{Name: "strip_trailing_commas", Apply: StripTrailingCommas},
	}
}

func applyAll(text string, strategies []Strategy) string {
	for _, s := range strategies {
		text = s.Apply(text)
	}
	return text
}

// StripFences removes a markdown fence around the payload. Text that already
// starts like JSON is left alone, so fences inside string values survive.
// With prose around the payload, the body between the first and the last
// fence line is kept.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "```") {
		return unwrapFence(trimmed)
	}

	lines := fenceLineRe.FindAllStringIndex(trimmed, -1)
	switch len(lines) {
	case 0:
		return trimmed
	case 1:
		// Unterminated, or opened mid-line: drop the fence line and let the crop
		// find the payload.
		return strings.TrimSpace(trimmed[:lines[0][0]] + trimmed[lines[0][1]:])
	}
	first, last := lines[0], lines[len(lines)-1]
	return strings.TrimSpace(trimmed[first[1]:last[0]])
}

// unwrapFence drops the opening fence line and a closing fence at the very end.
func unwrapFence(text string) string {
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

func cropFor(shape Shape) func(string) string {
	if shape == ShapeArray {
		return func(s string) string { return CropBetween(s, '[', ']') }
	}
	return func(s string) string { return CropBetween(s, '{', '}') }
}

// CropBetween drops everything before the first open and after the last close.
// Text without both delimiters is returned unchanged.
func CropBetween(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

var brokenBoundaryRe = regexp.MustCompile(`"[ \t]*\r?\n[ \t\r\n]*"`)

// JoinBrokenLines turns a quote, line break, quote boundary into `", "`, which is
// how models most often drop the comma between two string values.
func JoinBrokenLines(text string) string {
	return brokenBoundaryRe.ReplaceAllString(text, `", "`)
}

// NormalizeEscapes drops backslashes that do not start a valid JSON escape and
// escapes raw control characters inside string literals.
func NormalizeEscapes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			if i+1 >= len(text) {
				continue
			}
			next := text[i+1]
			if isJSONEscape(next) {
				b.WriteByte(c)
				b.WriteByte(next)
				i++
				continue
			}
			// Invalid escape such as \' or \-: keep the character, drop the slash.
		case '"':
			inString = false
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isJSONEscape(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

// EscapeInteriorQuotes escapes quotes that sit inside a string value. A quote
// only closes a string when the next non-space character is a structural one.
func EscapeInteriorQuotes(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			b.WriteByte(c)
			if i+1 < len(text) {
				b.WriteByte(text[i+1])
				i++
			}
		case '"':
			if closesString(text, i+1) {
				inString = false
				b.WriteByte(c)
			} else {
				b.WriteString(`\"`)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func closesString(text string, from int) bool {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\r', '\n':
			continue
		case ',', '}', ']', ':':
			return true
		default:
			return false
		}
	}
	return true
}

// QuoteBareKeys wraps unquoted object keys in double quotes.
func QuoteBareKeys(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 16)
	inString := false
	expectKey := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(text) {
				b.WriteByte(text[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			expectKey = false
			b.WriteByte(c)
		case c == '{' || c == ',':
			expectKey = true
			b.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			b.WriteByte(c)
		case expectKey && isIdentStart(c):
			j := i
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			k := j
			for k < len(text) && (text[k] == ' ' || text[k] == '\t') {
				k++
			}
			if k < len(text) && text[k] == ':' {
				b.WriteByte('"')
				b.WriteString(text[i:j])
				b.WriteByte('"')
				i = j - 1
			} else {
				b.WriteByte(c)
			}
			expectKey = false
		default:
			expectKey = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

// StripTrailingCommas removes commas that directly precede a closing bracket.
func StripTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(text) {
				b.WriteByte(text[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
