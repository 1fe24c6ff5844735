package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/2beens/contactdesk/internal/store"
	"github.com/2beens/contactdesk/pkg"
)

//go:embed templates
var templatesFS embed.FS

const (
	pageLogin     = "login.html"
	pageDashboard = "dashboard.html"
)

type LoginPage struct {
	Error    string
	Username string
}

type DashboardPage struct {
	Username string
	Messages []*store.ContactMessage
}

// Renderer holds the parsed pages, each one combined with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format("2006-01-02 15:04:05")
		},
	}

	r := &Renderer{pages: map[string]*template.Template{}}
	for _, page := range []string{pageLogin, pageDashboard} {
		t, err := template.New(page).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.pages[page] = t
	}

	return r, nil
}

func (r *Renderer) RenderLogin(w http.ResponseWriter, statusCode int, page LoginPage) error {
	return r.render(w, pageLogin, statusCode, page)
}

func (r *Renderer) RenderDashboard(w http.ResponseWriter, statusCode int, page DashboardPage) error {
	return r.render(w, pageDashboard, statusCode, page)
}

// render executes into a buffer first, so a template error never leaves a
// half written page with a success status behind.
func (r *Renderer) render(w http.ResponseWriter, name string, statusCode int, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page: %s", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), statusCode)
	return nil
}
