// Package render turns a composed digest into the HTML mail body.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/miradorstack/mirador-digest/internal/models"
)

//go:embed templates/digest.html.tmpl
var defaultTemplate string

// DisplayTimeLayout formats timestamps shown in the digest.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// Renderer executes the digest template.
type Renderer struct {
	tmpl   *template.Template
	labels map[string]string
}

// New parses the template at path, or the built-in template when path is
// empty. labels maps manager rule ids to the headings shown for them.
func New(path string, labels map[string]string) (*Renderer, error) {
	source := defaultTemplate
	name := "digest"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		source = string(data)
		name = path
	}
	r := &Renderer{labels: labels}
	tmpl, err := template.New(name).Funcs(r.funcs()).Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Render executes the template against report.
func (r *Renderer) Render(report models.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"label": func(id string) string {
			if label, ok := r.labels[id]; ok && label != "" {
				return label
			}
			return id
		},
		"when": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format(DisplayTimeLayout)
		},
		"whenPtr": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.Format(DisplayTimeLayout)
		},
		"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	}
}
