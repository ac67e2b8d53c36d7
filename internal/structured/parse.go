// Package structured recovers JSON-shaped data from model output that is not
// guaranteed to be well formed.
package structured

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PlaceholderTitle is used when no title can be recovered.
const PlaceholderTitle = "Untitled Presentation"

type Presentation struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ImageDirective struct {
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
}

// StructuredParseError reports output that stayed unparseable after every repair tier.
type StructuredParseError struct {
	Shape Shape
	Raw   string
	Cause error
}

func (e *StructuredParseError) Error() string {
	return fmt.Sprintf("parse %s output failed after repair: %v", e.Shape, e.Cause)
}

func (e *StructuredParseError) Unwrap() error {
	return e.Cause
}

// Decode runs the cleanup tier, parses, and on failure runs the repair tier and
// parses once more.
func Decode(raw string, shape Shape, v any) error {
	cleaned := applyAll(raw, CleanupStrategies(shape))
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}
	repaired := applyAll(cleaned, RepairStrategies())
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &StructuredParseError{Shape: shape, Raw: raw, Cause: err}
	}
	return nil
}

type presentationPayload struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
	Slides  []string        `json:"slides"`
}

// ParsePresentation never fails. When every structured tier is exhausted it
// falls back to field extraction and finally to the cleaned text itself.
func ParsePresentation(raw string) Presentation {
	var payload presentationPayload
	if err := Decode(raw, ShapeObject, &payload); err == nil {
		if content := payloadContent(payload); strings.TrimSpace(content) != "" {
			return finalize(payload.Title, content)
		}
	}
	return fallbackPresentation(raw)
}

func payloadContent(p presentationPayload) string {
	if len(p.Content) > 0 {
		var s string
		if err := json.Unmarshal(p.Content, &s); err == nil {
			return s
		}
		// Some models return the slides as an array of strings.
		var parts []string
		if err := json.Unmarshal(p.Content, &parts); err == nil {
			return strings.Join(parts, "\n\n---\n\n")
		}
	}
	if len(p.Slides) > 0 {
		return strings.Join(p.Slides, "\n\n---\n\n")
	}
	return ""
}

var (
	titleFieldRe   = regexp.MustCompile(`(?i)"?title"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	contentFieldRe = regexp.MustCompile(`(?is)"?content"?\s*:\s*"(.*)"`)
)

func fallbackPresentation(raw string) Presentation {
	cleaned := StripFences(raw)
	if m := contentFieldRe.FindStringSubmatch(cleaned); m != nil {
		title := ""
		if t := titleFieldRe.FindStringSubmatch(cleaned); t != nil {
			title = unescapeLoose(t[1])
		}
		return finalize(title, unescapeLoose(m[1]))
	}
	return finalize("", cleaned)
}

func unescapeLoose(s string) string {
	r := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\t`, "\t")
	return r.Replace(s)
}

func finalize(title, content string) Presentation {
	title = strings.TrimSpace(title)
	if title == "" {
		title = PlaceholderTitle
	}
	return Presentation{Title: title, Content: NormalizeSlideContent(content)}
}

// ParseImageDirectives has no fallback: unrecoverable output is a *StructuredParseError.
// A wrapping object such as {"images": [...]} is handled by the array crop.
// Directives without a prompt are dropped.
func ParseImageDirectives(raw string) ([]ImageDirective, error) {
	var directives []ImageDirective
	if err := Decode(raw, ShapeArray, &directives); err != nil {
		return nil, err
	}

	out := make([]ImageDirective, 0, len(directives))
	for _, d := range directives {
		d.Prompt = strings.TrimSpace(d.Prompt)
		d.Description = strings.TrimSpace(d.Description)
		if d.Prompt == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
