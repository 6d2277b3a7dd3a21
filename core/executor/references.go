package executor

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/luislascano01/Stratvithor/core/task"
	"github.com/luislascano01/Stratvithor/providers/search"
)

// ParseReferences reads "Title: URL" lines as reported by the model. A line
// without a URL becomes a title-only reference. Blank lines are skipped and
// references are deduplicated by URL, or by title when there is no URL.
func ParseReferences(text string) []task.Reference {
	references := make([]task.Reference, 0)
	seen := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if line == "" {
			continue
		}

		reference := task.Reference{Title: line}
		if start := urlStart(line); start >= 0 {
			reference.URL = strings.TrimSpace(line[start:])
			reference.Title = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line[:start]), ":"))
		}

		key := referenceKey(reference)
		if seen[key] {
			continue
		}
		seen[key] = true
		references = append(references, reference)
	}
	return references
}

func urlStart(line string) int {
	httpIndex := strings.Index(line, "http://")
	httpsIndex := strings.Index(line, "https://")
	switch {
	case httpIndex < 0:
		return httpsIndex
	case httpsIndex < 0:
		return httpIndex
	default:
		return min(httpIndex, httpsIndex)
	}
}

func referenceKey(reference task.Reference) string {
	if reference.URL != "" {
		return "url:" + reference.URL
	}
	return "title:" + reference.Title
}

// MergeReferences puts the model-reported references ahead of the fetched
// hits, deduplicated, and drops entries whose URL is not well-formed.
func MergeReferences(validate *validator.Validate, reported []task.Reference, hits []search.Hit) []task.Reference {
	merged := make([]task.Reference, 0, len(reported)+len(hits))
	seen := make(map[string]bool)

	add := func(reference task.Reference) {
		if reference.URL != "" && validate.Var(reference.URL, "url") != nil {
			return
		}
		if reference.Title == "" && reference.URL == "" {
			return
		}
		key := referenceKey(reference)
		if seen[key] {
			return
		}
		seen[key] = true
		merged = append(merged, reference)
	}

	for _, reference := range reported {
		add(reference)
	}
	for _, hit := range hits {
		if hit.Source == PlaceholderHit.Source {
			continue
		}
		add(task.Reference{Title: hit.Title, URL: hit.URL, Snippet: hit.Snippet})
	}
	return merged
}
