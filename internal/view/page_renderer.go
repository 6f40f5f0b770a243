// Package view renders the HTML pages and fragments of the web client.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	PageHome        = "home"
	PageBrowse      = "browse"
	PageMatches     = "matches"
	PageMessages    = "messages"
	PageProfile     = "profile"
	PageProfileEdit = "profile_edit"
	PageError       = "error"

	// FragmentThread is the polled conversation body.
	FragmentThread = "thread"
)

var pageFiles = map[string][]string{
	PageHome:        {"templates/layout.html", "templates/partials.html", "templates/home.html"},
	PageBrowse:      {"templates/layout.html", "templates/partials.html", "templates/browse.html"},
	PageMatches:     {"templates/layout.html", "templates/partials.html", "templates/matches.html"},
	PageMessages:    {"templates/layout.html", "templates/partials.html", "templates/messages.html"},
	PageProfile:     {"templates/layout.html", "templates/partials.html", "templates/profile.html"},
	PageProfileEdit: {"templates/layout.html", "templates/partials.html", "templates/profile_edit.html"},
	PageError:       {"templates/layout.html", "templates/partials.html", "templates/error.html"},
	FragmentThread:  {"templates/partials.html"},
}

// PageRenderer renders pages through a set of parsed templates.
type PageRenderer struct {
	templates map[string]*template.Template
}

func NewPageRenderer() (*PageRenderer, error) {
	templates := make(map[string]*template.Template, len(pageFiles))
	for name, files := range pageFiles {
		t, err := template.New(name).Funcs(Funcs()).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s templates: %w", name, err)
		}
		templates[name] = t
	}
	return &PageRenderer{templates: templates}, nil
}

// Render writes a full page. Output is buffered so a failing template never
// leaves a half-written response.
func (pr *PageRenderer) Render(wr io.Writer, page string, data Page) error {
	return pr.execute(wr, page, "layout", data)
}

func (pr *PageRenderer) RenderFragment(wr io.Writer, fragment string, data any) error {
	return pr.execute(wr, fragment, fragment, data)
}

func (pr *PageRenderer) execute(wr io.Writer, set, name string, data any) error {
	t, ok := pr.templates[set]
	if !ok {
		return fmt.Errorf("template is missing: %s", set)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("execute %s: %w", set, err)
	}
	_, err := buf.WriteTo(wr)
	return err
}
