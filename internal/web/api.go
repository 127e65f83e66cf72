// ABOUTME: JSON chapter API guarded by bearer tokens
// ABOUTME: Used by publishing scripts to manage chapters remotely

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lilyrose/reading-club/internal/store"
)

// chapterResponse is the JSON shape of a chapter.
type chapterResponse struct {
	ID        string    `json:"id"`
	Episode   int       `json:"episode"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// chapterRequest is the JSON body for create/update.
type chapterRequest struct {
	Episode int    `json:"episode"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func toChapterResponse(ch *store.Chapter) chapterResponse {
	return chapterResponse{
		ID:        ch.ID,
		Episode:   ch.Episode,
		Title:     ch.Title,
		Content:   ch.Content,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}

// requireToken wraps an API handler, requiring a valid bearer token.
func (s *Site) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.tokens == nil {
			writeAPIError(w, http.StatusServiceUnavailable, "API not configured")
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeAPIError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if _, err := s.tokens.Verify(token); err != nil {
			s.logger.Debug("rejected API token", "error", err)
			writeAPIError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r)
	}
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeAPIJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleAPIListChapters returns all chapters ordered by episode.
func (s *Site) handleAPIListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.store.ListChapters(r.Context())
	if err != nil {
		s.logger.Error("failed to list chapters", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to list chapters")
		return
	}

	out := make([]chapterResponse, len(chapters))
	for i, ch := range chapters {
		out[i] = toChapterResponse(ch)
		out[i].Content = "" // list responses omit the body
	}
	writeAPIJSON(w, http.StatusOK, out)
}

// handleAPICreateChapter creates a new chapter.
func (s *Site) handleAPICreateChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Title == "" {
		writeAPIError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Episode < 1 {
		writeAPIError(w, http.StatusBadRequest, "episode must be a positive integer")
		return
	}

	now := time.Now()
	ch := &store.Chapter{
		ID:        uuid.New().String(),
		Episode:   req.Episode,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateChapter(r.Context(), ch); err != nil {
		if errors.Is(err, store.ErrDuplicateEpisode) {
			writeAPIError(w, http.StatusConflict, "episode number already exists")
			return
		}
		s.logger.Error("failed to create chapter", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to create chapter")
		return
	}

	s.logger.Info("chapter created via API", "chapter_id", ch.ID, "episode", ch.Episode)
	writeAPIJSON(w, http.StatusCreated, toChapterResponse(ch))
}

// handleAPIGetChapter returns a single chapter with its content.
func (s *Site) handleAPIGetChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := s.store.GetChapter(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "chapter not found")
			return
		}
		s.logger.Error("failed to get chapter", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to get chapter")
		return
	}

	writeAPIJSON(w, http.StatusOK, toChapterResponse(ch))
}

// handleAPIUpdateChapter updates a chapter's episode, title, and content.
func (s *Site) handleAPIUpdateChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := s.store.GetChapter(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "chapter not found")
			return
		}
		s.logger.Error("failed to get chapter", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to get chapter")
		return
	}

	var req chapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Title == "" {
		writeAPIError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Episode < 1 {
		writeAPIError(w, http.StatusBadRequest, "episode must be a positive integer")
		return
	}

	ch.Episode = req.Episode
	ch.Title = req.Title
	ch.Content = req.Content
	ch.UpdatedAt = time.Now()

	if err := s.store.UpdateChapter(r.Context(), ch); err != nil {
		if errors.Is(err, store.ErrDuplicateEpisode) {
			writeAPIError(w, http.StatusConflict, "episode number already exists")
			return
		}
		s.logger.Error("failed to update chapter", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to update chapter")
		return
	}

	s.logger.Info("chapter updated via API", "chapter_id", ch.ID, "episode", ch.Episode)
	writeAPIJSON(w, http.StatusOK, toChapterResponse(ch))
}

// handleAPIDeleteChapter deletes a chapter.
func (s *Site) handleAPIDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.DeleteChapter(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "chapter not found")
			return
		}
		s.logger.Error("failed to delete chapter", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to delete chapter")
		return
	}

	s.logger.Info("chapter deleted via API", "chapter_id", id)
	w.WriteHeader(http.StatusNoContent)
}
