package solver

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/todmy/logic-refine/pkg/models"
)

const maxDiagnosticLen = 200

type errorCategory struct {
	keywords []string
	render   func(detail string, backend models.Backend) string
}

// quoted spans hold formula text and tokens, never a category keyword
var quoted = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

// categories are matched in order against the lower-cased raw message with
// quoted spans removed
var categories = []errorCategory{
	{
		keywords: []string{"timeout", "timed out", "deadline exceeded", "context canceled"},
		render: func(_ string, backend models.Backend) string {
			return fmt.Sprintf("timeout: %s did not conclude within the time budget; simplify premises or reduce quantifier nesting", backend)
		},
	},
	{
		keywords: []string{"not implemented"},
		render: func(_ string, backend models.Backend) string {
			return fmt.Sprintf("not implemented: %s backend is declared but unavailable; use gini or gophersat", backend)
		},
	},
	{
		keywords: []string{"unsupported backend"},
		render: func(_ string, backend models.Backend) string {
			return fmt.Sprintf("unsupported backend: %q is not a known backend", backend)
		},
	},
	{
		keywords: []string{"empty premises"},
		render: func(string, models.Backend) string {
			return "empty premises: at least one premise is required"
		},
	},
	{
		keywords: []string{"empty conclusion"},
		render: func(string, models.Backend) string {
			return "empty conclusion: a conclusion formula is required"
		},
	},
	{
		keywords: []string{"syntax error", "parse error", "unexpected"},
		render: func(detail string, _ models.Backend) string {
			return "syntax error: " + detail
		},
	},
	{
		keywords: []string{"grounding limit"},
		render: func(detail string, _ models.Backend) string {
			return "grounding limit: problem too large to ground; use fewer constants or quantifiers (" + detail + ")"
		},
	},
}

// Classify turns a raw backend failure into a short diagnostic suitable as
// feedback for the next refinement attempt. The result is never empty and
// always begins with a lower-case category keyword.
func Classify(raw string, backend models.Backend) string {
	detail := firstLine(raw)
	if detail == "" {
		return "solver error: unknown failure"
	}

	lower := strings.ToLower(quoted.ReplaceAllString(detail, `""`))
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return truncate(c.render(detail, backend))
			}
		}
	}
	return truncate("solver error: " + detail)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string) string {
	if len(s) <= maxDiagnosticLen {
		return s
	}
	cut := maxDiagnosticLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
