// Package handler contains HTTP request handlers for the todo service.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc; a function with the right signature
// that automatically satisfies the Handler interface. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path params, form or JSON body)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic; they are the "glue" between HTTP and your app.
package handler

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages holds the parsed HTML templates so we don't re-parse them on every request.
//
// TEMPLATE COMPOSITION:
// base.html defines the page shell with a {{template "content" .}} placeholder.
// Each page file defines its own "content" block. Because every page uses
// the same block name, each page gets its own template set: base + page.
type Pages struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// pageData is what every page template receives.
type pageData struct {
	Title    string
	Message  string
	Username string
	Todos    any
}

// NewPages parses the embedded templates.
func NewPages(logger *slog.Logger) (*Pages, error) {
	p := &Pages{
		templates: make(map[string]*template.Template),
		logger:    logger,
	}

	for _, name := range []string{"register", "login", "todos"} {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	return p, nil
}

// render executes the "base" template of the named page.
func (p *Pages) render(w http.ResponseWriter, name string, data pageData) {
	tmpl, ok := p.templates[name]
	if !ok {
		p.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Set content type header BEFORE writing the body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
