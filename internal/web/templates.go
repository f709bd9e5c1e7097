// ABOUTME: Template loading and page rendering for the document pages
// ABOUTME: Every page is the base layout plus one content template

package web

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"

	"github.com/2389/folio/internal/assets"
	"github.com/2389/folio/internal/cms"
	"github.com/2389/folio/internal/session"
)

var pageTitles = map[string]string{
	cms.PageIndex:    "Documents",
	cms.PageDocument: "",
	cms.PageNew:      "New Document",
	cms.PageEdit:     "Edit",
	cms.PageLogin:    "Sign In",
	cms.PageSignup:   "Sign Up",
}

// docPath is the URL path of a document. Names may hold '#', '?' or '%',
// which html/template leaves alone inside an href.
func docPath(name string) string {
	return "/" + url.PathEscape(name)
}

var templateFuncs = template.FuncMap{
	"asset":   assets.Path,
	"docpath": docPath,

	// trusted marks renderer output, which is sanitized before it gets here
	"trusted": func(s string) template.HTML { return template.HTML(s) },
}

// pageData is what every page template receives.
type pageData struct {
	Title     string
	User      string
	SignedIn  bool
	CSRFToken string
	Error     string
	Success   string
	Data      any
}

// loadTemplates parses the layout with each page. Panics on a broken template.
func loadTemplates() map[string]*template.Template {
	pages := make(map[string]*template.Template, len(pageTitles))
	for name := range pageTitles {
		pages[name] = template.Must(template.New("base.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}
	return pages
}

// render executes a page into a buffer and writes it with the given status.
// Pending flash messages are consumed here, so each is shown exactly once.
func (s *Server) render(w http.ResponseWriter, status int, sess *session.Session, res *cms.Result) {
	tmpl, ok := s.pages[res.Page]
	if !ok {
		s.logger.Error("unknown page", "page", res.Page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:     pageTitles[res.Page],
		CSRFToken: sess.CSRFToken(),
		Data:      res.Data,
	}
	if d, ok := res.Data.(cms.DocumentData); ok {
		data.Title = d.Name
	}
	data.User, data.SignedIn = sess.CurrentUser()
	data.Error, _ = sess.TakeError()
	data.Success, _ = sess.TakeSuccess()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render page", "page", res.Page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", cms.ContentTypeHTML)
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("failed to write page", "error", err)
	}
}
