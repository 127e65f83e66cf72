// ABOUTME: Bookcase and chapter page handlers
// ABOUTME: Resolves shelf keys, lists chapters, and renders the reader page

package web

import (
	"errors"
	"net/http"

	"github.com/lilyrose/reading-club/internal/bookcase"
	"github.com/lilyrose/reading-club/internal/store"
)

// readingShelfKey is the shelf whose page lists the club's chapters.
const readingShelfKey = "reading"

// handleHome redirects to the first shelf of the bookcase.
func (s *Site) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/bookcase/"+s.catalog.First().Key, http.StatusSeeOther)
}

// handleShelf renders a bookcase shelf page.
func (s *Site) handleShelf(w http.ResponseWriter, r *http.Request) {
	rawKey := r.PathValue("key")

	shelf, err := s.catalog.Resolve(rawKey)
	if err != nil {
		if errors.Is(err, bookcase.ErrUnknownShelf) {
			s.renderNotFound(w, "That shelf isn't in the bookcase.")
			return
		}
		s.logger.Error("failed to resolve shelf", "key", rawKey, "error", err)
		s.renderErrorPage(w, "Couldn't open the bookcase.")
		return
	}

	// Canonicalize messy keys in the address bar
	if rawKey != shelf.Key {
		http.Redirect(w, r, "/bookcase/"+shelf.Key, http.StatusMovedPermanently)
		return
	}

	nav, err := s.catalog.Neighbors(shelf.Key)
	if err != nil {
		s.logger.Error("failed to compute shelf neighbors", "key", shelf.Key, "error", err)
		s.renderErrorPage(w, "Couldn't open the bookcase.")
		return
	}

	var chapters []*store.Chapter
	if shelf.Key == readingShelfKey {
		chapters, err = s.store.ListChapters(r.Context())
		if err != nil {
			s.logger.Error("failed to list chapters", "error", err)
			s.renderErrorPage(w, "Couldn't load the chapter list.")
			return
		}
	}

	r, csrfToken := s.ensureCSRFToken(w, r)
	s.renderShelfPage(w, readerFromContext(r), shelf, nav, chapters, csrfToken)
}

// handleChapter renders the chapter reader page with prev/next links.
func (s *Site) handleChapter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	page, err := s.library.Page(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderNotFound(w, "That chapter doesn't exist.")
			return
		}
		s.logger.Error("failed to load chapter", "chapter_id", id, "error", err)
		s.renderErrorPage(w, "Couldn't load the chapter.")
		return
	}

	r, csrfToken := s.ensureCSRFToken(w, r)
	s.renderChapterPage(w, readerFromContext(r), page, csrfToken)
}
