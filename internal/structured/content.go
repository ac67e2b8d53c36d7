package structured

import "strings"

// SlideSeparator is the canonical separator between slides.
const SlideSeparator = "\n\n---\n\n"

const separatorToken = "---"

// NormalizeSlideContent turns literal "\n" sequences into line breaks and makes
// every slide separator sit on its own line with exactly one blank line on
// each side. A separator glued to the end or start of a text line counts.
func NormalizeSlideContent(content string) string {
	content = strings.ReplaceAll(content, `\r\n`, "\n")
	content = strings.ReplaceAll(content, `\n`, "\n")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var slides [][]string
	var current []string
	flush := func() {
		if block := trimBlankLines(current); len(block) > 0 {
			slides = append(slides, block)
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		before, isSep, after := splitSeparator(line)
		if !isSep {
			current = append(current, line)
			continue
		}
		if before != "" {
			current = append(current, before)
		}
		flush()
		if after != "" {
			current = append(current, after)
		}
	}
	flush()

	parts := make([]string, len(slides))
	for i, block := range slides {
		parts[i] = strings.Join(block, "\n")
	}
	return strings.Join(parts, SlideSeparator)
}

// splitSeparator reports whether line holds a separator, returning any text
// glued before or after it. Longer dash runs are left alone.
func splitSeparator(line string) (before string, isSep bool, after string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == separatorToken {
		return "", true, ""
	}
	if strings.HasSuffix(trimmed, separatorToken) {
		head := strings.TrimSuffix(trimmed, separatorToken)
		if head != "" && !strings.HasSuffix(head, "-") && !strings.HasSuffix(head, "|") {
			return strings.TrimRight(head, " \t"), true, ""
		}
	}
	if strings.HasPrefix(trimmed, separatorToken) {
		tail := strings.TrimPrefix(trimmed, separatorToken)
		if tail != "" && !strings.HasPrefix(tail, "-") && !strings.HasPrefix(tail, "|") {
			return "", true, strings.TrimLeft(tail, " \t")
		}
	}
	return "", false, ""
}

func trimBlankLines(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

// Slides splits normalized content into individual slide bodies.
func Slides(content string) []string {
	normalized := NormalizeSlideContent(content)
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, SlideSeparator)
}
