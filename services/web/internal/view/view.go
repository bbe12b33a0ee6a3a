package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"regexp"
	"strings"
	"time"
)

var (
	//go:embed templates/*.html
	templateFS embed.FS

	//go:embed static
	staticFS embed.FS
)

const (
	PageIndex       = "index.html"
	PageLogin       = "login.html"
	PageRegister    = "register.html"
	PageQuoteForm   = "quote_form.html"
	PageQuoteDetail = "quote_detail.html"
	PageMyQuotes    = "my_quotes.html"
	PageMyReactions = "my_reactions.html"
)

// Renderer holds one parsed template set per page, each sharing the layout.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	layout, err := template.New("layout.html").Funcs(Funcs()).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		base := strings.TrimPrefix(name, "templates/")
		if base == "layout.html" {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout: %w", err)
		}
		if _, err := t.ParseFS(templateFS, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		r.pages[base] = t
	}
	return r, nil
}

// Render executes page with data. Output is buffered so a template error
// never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, page string, data map[string]any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static returns the embedded assets rooted so that "app.js" resolves.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Funcs are the helpers available to every page.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"highlight": Highlight,
		"deref":     deref,
		"truncate":  truncate,
		"add":       func(a, b int) int { return a + b },
		"date":      func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}
}

// Highlight escapes text and wraps every case-insensitive occurrence of
// keyword in <mark>.
func Highlight(text, keyword string) template.HTML {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return template.HTML(template.HTMLEscapeString(text))
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(keyword))
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		b.WriteString(template.HTMLEscapeString(text[last:m[0]]))
		b.WriteString("<mark>")
		b.WriteString(template.HTMLEscapeString(text[m[0]:m[1]]))
		b.WriteString("</mark>")
		last = m[1]
	}
	b.WriteString(template.HTMLEscapeString(text[last:]))
	return template.HTML(b.String())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
