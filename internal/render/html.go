package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/dustin/go-humanize"

	"agentgames/internal/game"
	"agentgames/internal/replay"
)

//go:embed templates/*.html
var templates embed.FS

// Page is the data for the session replay page.
type Page struct {
	Code  string
	Title string
	State replay.State
	Frame game.Frame
	Table *TableView
}

// Renderer executes the embedded HTML templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"commaf": humanize.Commaf,
		"percent": func(f float64) string {
			return fmt.Sprintf("%.0f%%", f)
		},
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// ResultPage writes the standalone result table page.
func (r *Renderer) ResultPage(w io.Writer, title string, tv *TableView) error {
	return r.tmpl.ExecuteTemplate(w, "result.html", Page{Title: title, Table: tv})
}

// SessionPage writes the replay page for one viewing session.
func (r *Renderer) SessionPage(w io.Writer, p Page) error {
	return r.tmpl.ExecuteTemplate(w, "session.html", p)
}
