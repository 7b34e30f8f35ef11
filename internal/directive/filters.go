package directive

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/ropetpl/internal/errors"
)

// Filter transforms a variable's value. arg is the text after ':' in
// `name:arg`.
type Filter func(value, arg string) string

var filters = map[string]Filter{
	"upper": func(v, _ string) string { return cases.Upper(language.Und).String(v) },
	"lower": func(v, _ string) string { return cases.Lower(language.Und).String(v) },
	"title": func(v, _ string) string { return cases.Title(language.Und).String(v) },
	"trim":  func(v, _ string) string { return strings.TrimSpace(v) },
	"default": func(v, arg string) string {
		if v == "" {
			return arg
		}
		return v
	},
}

// FilterNames lists the available filters.
func FilterNames() []string {
	names := make([]string, 0, len(filters)+1)
	for name := range filters {
		names = append(names, name)
	}
	names = append(names, "raw")
	sort.Strings(names)
	return names
}

type filterCall struct {
	name string
	arg  string
	fn   Filter
}

func parseFilter(text string) (filterCall, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(text), ":")
	name = strings.TrimSpace(name)
	arg = unquote(strings.TrimSpace(arg))
	if name == "raw" {
		return filterCall{name: name}, nil
	}
	fn, ok := filters[name]
	if !ok {
		return filterCall{}, errors.NewSyntaxError(errors.ErrCodeUnknownFilter,
			"unknown filter \""+name+"\"").
			WithContext("filter", name).
			WithContext("known", FilterNames())
	}
	return filterCall{name: name, arg: arg, fn: fn}, nil
}

func unquote(s string) string {
	if n := len(s); n >= 2 && (s[0] == '"' || s[0] == '\'') && s[n-1] == s[0] {
		return s[1 : n-1]
	}
	return s
}

// splitPipes splits on '|' outside quoted literals.
func splitPipes(s string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '|':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
