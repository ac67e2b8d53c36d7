package source

import (
	"regexp"
	"strings"
)

var urlRe = regexp.MustCompile(`https?://\S+`)

// ExtractURLs returns the http(s) URLs embedded in free text, in order of appearance.
func ExtractURLs(text string) []string {
	found := urlRe.FindAllString(text, -1)
	out := make([]string, 0, len(found))
	for _, u := range found {
		u = strings.TrimRight(u, ".,;:!?)]}'\"")
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// MergeURLs concatenates the lists, trimming and dropping blanks and duplicates.
func MergeURLs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, u := range list {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}
