// Package prompt renders natural-language prompt templates from validated
// flow input.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Template is a compiled prompt. It is safe for concurrent use.
type Template struct {
	name string
	tmpl *template.Template
}

// Parse compiles text as a prompt template. Templates use Go template syntax
// with the sprig function set; list fields are interpolated with
// {{ join ", " .field }} and optional blocks with {{ if .field }}.
// Referencing a key that is absent from the render data is an error.
func Parse(name, text string) (*Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %q: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// MustParse is like Parse but panics on error. Use it for templates compiled
// at process start.
func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Render produces the literal prompt text for data.
func (t *Template) Render(data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %q: %w", t.name, err)
	}
	return buf.String(), nil
}
