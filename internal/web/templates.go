// ABOUTME: Template rendering functions for the reading club site
// ABOUTME: Loads templates from embedded filesystem and renders them

package web

import (
	"html/template"
	"net/http"

	"github.com/lilyrose/reading-club/internal/bookcase"
	"github.com/lilyrose/reading-club/internal/library"
	"github.com/lilyrose/reading-club/internal/store"
)

// Template data types
type loginData struct {
	Title     string
	Reader    *store.Reader
	Error     string
	CSRFToken string
}

type inviteData struct {
	Title     string
	Reader    *store.Reader
	Token     string
	Error     string
	CSRFToken string
}

type shelfPageData struct {
	Title     string
	Reader    *store.Reader
	Shelf     bookcase.Shelf
	Nav       bookcase.NavLinks
	Shelves   []bookcase.Shelf
	Chapters  []*store.Chapter
	CSRFToken string
}

type chapterPageData struct {
	Title     string
	Reader    *store.Reader
	Page      *library.Page
	CSRFToken string
}

type notFoundData struct {
	Title     string
	Reader    *store.Reader
	Message   string
	CSRFToken string
}

type errorPageData struct {
	Title     string
	Reader    *store.Reader
	Message   string
	CSRFToken string
}

type inviteCreatedData struct {
	URL string
}

// renderLoginPage renders the login page
func (s *Site) renderLoginPage(w http.ResponseWriter, errorMsg, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/login.html"))

	data := loginData{
		Title:     s.config.Title,
		Error:     errorMsg,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render login page", "error", err)
	}
}

// renderInvitePage renders the invite/signup page
func (s *Site) renderInvitePage(w http.ResponseWriter, token, errorMsg, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/invite.html"))

	data := inviteData{
		Title:     "Join the club",
		Token:     token,
		Error:     errorMsg,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render invite page", "error", err)
	}
}

// renderShelfPage renders a bookcase shelf page
func (s *Site) renderShelfPage(w http.ResponseWriter, reader *store.Reader, shelf bookcase.Shelf, nav bookcase.NavLinks, chapters []*store.Chapter, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/shelf.html"))

	data := shelfPageData{
		Title:     shelf.Label,
		Reader:    reader,
		Shelf:     shelf,
		Nav:       nav,
		Shelves:   s.catalog.Shelves(),
		Chapters:  chapters,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render shelf page", "error", err)
	}
}

// renderChapterPage renders the chapter reader page
func (s *Site) renderChapterPage(w http.ResponseWriter, reader *store.Reader, page *library.Page, csrfToken string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/chapter.html"))

	data := chapterPageData{
		Title:     page.Chapter.Title,
		Reader:    reader,
		Page:      page,
		CSRFToken: csrfToken,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render chapter page", "error", err)
	}
}

// renderNotFound renders the 404 page
func (s *Site) renderNotFound(w http.ResponseWriter, message string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/notfound.html"))

	data := notFoundData{
		Title:   "Not Found",
		Message: message,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render not found page", "error", err)
	}
}

// renderErrorPage renders the 500 page
func (s *Site) renderErrorPage(w http.ResponseWriter, message string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/error.html"))

	data := errorPageData{
		Title:   "Something went wrong",
		Message: message,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render error page", "error", err)
	}
}

// renderInviteCreated renders the invite created partial (htmx response)
func (s *Site) renderInviteCreated(w http.ResponseWriter, inviteURL string) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/partials/invite_created.html"))

	data := inviteCreatedData{
		URL: inviteURL,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render invite created", "error", err)
	}
}
