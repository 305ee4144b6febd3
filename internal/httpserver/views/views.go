package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names
const (
	PageLanding   = "landing"
	PageLogin     = "login"
	PageDashboard = "dashboard"
)

// ─────────────────────────────────────────────────────────────────
// View models
// ─────────────────────────────────────────────────────────────────

type LandingData struct {
	User *domain.User
}

type Provider struct {
	Name string // button label
	Href string // sign-in route, ex: /auth/signin/google?next=/dashboard
}

type LoginData struct {
	Error     string
	Providers []Provider
}

type ListData struct {
	Bookmarks []domain.Bookmark
	TabID     string
}

type DashboardData struct {
	User      *domain.User
	TabID     string
	Error     string
	LoadError bool
	List      ListData
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Local().Format("Jan 2, 2006") },
	"iso":  func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

// Renderer executes the embedded templates. Each page is parsed with the
// layout and the shared partials.
type Renderer struct {
	pages map[string]*template.Template
	list  *template.Template
}

// New parses every template. It fails on syntax errors so a broken build
// is caught at startup.
func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}

	for _, name := range []string{PageLanding, PageLogin, PageDashboard} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/list.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}

	list, err := template.New("list").Funcs(funcs).ParseFS(templateFS, "templates/list.html")
	if err != nil {
		return nil, fmt.Errorf("parse list: %w", err)
	}
	r.list = list
	return r, nil
}

// Page renders a full page. Output is buffered so a template error never
// leaves a half-written response.
func (r *Renderer) Page(w http.ResponseWriter, status int, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// List renders the bookmark list fragment pushed over the event stream.
func (r *Renderer) List(data ListData) (string, error) {
	var buf bytes.Buffer
	if err := r.list.ExecuteTemplate(&buf, "bookmark_list", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Static serves the embedded assets, to be mounted under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
