package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Example     string
}

// SuggestionsFor returns fix hints for a template error, keyed on its code.
// Errors that are not TplErrors get none.
func SuggestionsFor(err error) []ErrorSuggestion {
	var te *TplError
	if !errors.As(err, &te) {
		return nil
	}

	switch te.Code {
	case ErrCodeUnclosedDirective:
		return []ErrorSuggestion{{
			Title:       "Close the directive",
			Description: "Every opening delimiter needs its closing counterpart on the same directive",
			Example:     "{{ user.name }} or {% if user %}",
		}}
	case ErrCodeUnbalanced:
		return []ErrorSuggestion{{
			Title:       "Balance if/endif pairs",
			Description: "Each {% if %} must be matched by exactly one {% endif %}, nested blocks included",
			Example:     "{% if a %}{% if b %}...{% endif %}{% endif %}",
		}}
	case ErrCodeInvalidStructure:
		return []ErrorSuggestion{{
			Title:       "Put else last",
			Description: "A conditional allows any number of elif branches but at most one else, and else must be the final branch",
			Example:     "{% if a %}..{% elif b %}..{% else %}..{% endif %}",
		}}
	case ErrCodeInvalidCondition:
		return []ErrorSuggestion{{
			Title:       "Use a supported operator",
			Description: "Conditions are a path, or two operands joined by <, <=, >, >=, ==, !=, in or not in",
			Example:     "{% if user.age >= '18' %} or {% if 'admin' in user.roles %}",
		}}
	case ErrCodeInvalidPath:
		return []ErrorSuggestion{{
			Title:       "Check the path syntax",
			Description: "Paths are dot-separated keys with optional [index] or [path] lookups",
			Example:     "site.pages[0].title or prices[item.sku]",
		}}
	case ErrCodeUnknownFilter:
		s := ErrorSuggestion{
			Title:       "Use a known filter",
			Description: "Filters are applied left to right after the value",
			Example:     "{{ name | trim | title }}",
		}
		if known, ok := te.Context["known"].([]string); ok {
			s.Description = "Available filters: " + strings.Join(known, ", ")
			if name, ok := te.Context["filter"].(string); ok {
				if best := closest(name, known); best != "" {
					s.Title = fmt.Sprintf("Did you mean %q?", best)
				}
			}
		}
		return []ErrorSuggestion{s}
	case ErrCodeMissingValue:
		return []ErrorSuggestion{
			{
				Title:       "Provide a default",
				Description: "The default filter supplies a value when the path resolves to nothing",
				Example:     "{{ user.nickname | default:'guest' }}",
			},
			{
				Title:       "Relax the missing-value policy",
				Description: "Set render.missing to empty or keep in .ropetpl.yml",
			},
		}
	case ErrCodeConfigInvalid:
		return []ErrorSuggestion{{
			Title:       "Check the configuration file",
			Description: "Run ropetpl with --log-level debug to see which file was loaded",
		}}
	}
	return nil
}

// closest returns the candidate within edit distance 2 of name, if any.
func closest(name string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := distance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// distance is the Levenshtein distance between a and b.
func distance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	return FormatSuggestions(e.Title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// Enhance attaches SuggestionsFor(err) to err. It returns err unchanged when
// there is nothing to suggest.
func Enhance(err error) error {
	s := SuggestionsFor(err)
	if len(s) == 0 {
		return err
	}
	return &EnhancedError{OriginalError: err, Title: err.Error(), Suggestions: s}
}
