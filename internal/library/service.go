// ABOUTME: Library service composing the reader page from store data
// ABOUTME: Renders chapter markdown with goldmark and caches rendered HTML

package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/lilyrose/reading-club/internal/store"
)

const (
	// renderCacheTTL bounds how long rendered HTML is reused. Edits change
	// the cache key via updated_at, so this only caps memory residency.
	renderCacheTTL = time.Hour

	// renderCacheSize bounds the number of cached chapter bodies.
	renderCacheSize = 256
)

// Page is everything the reader template needs for one chapter: the chapter
// itself, its rendered body, and its sequence neighbors. Prev/Next are nil
// at the boundaries of the sequence.
type Page struct {
	Chapter *store.Chapter
	Body    template.HTML
	HasBody bool
	Prev    *store.Chapter
	Next    *store.Chapter
}

// Service provides chapter pages to the web layer.
type Service struct {
	chapters store.ChapterStore
	md       goldmark.Markdown
	cache    *renderCache
	logger   *slog.Logger
}

// NewService creates a library service over the given chapter store.
func NewService(chapters store.ChapterStore) *Service {
	return &Service{
		chapters: chapters,
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
		cache:    newRenderCache(renderCacheTTL, renderCacheSize),
		logger:   slog.Default().With("component", "library"),
	}
}

// Close releases the render cache's background goroutine.
func (s *Service) Close() {
	s.cache.Close()
}

// Page assembles the reader page for a chapter ID.
// Returns store.ErrNotFound if the chapter doesn't exist; neighbor absence
// is not an error and yields nil Prev/Next.
func (s *Service) Page(ctx context.Context, id string) (*Page, error) {
	ch, err := s.chapters.GetChapter(ctx, id)
	if err != nil {
		return nil, err
	}

	body, err := s.render(ch)
	if err != nil {
		return nil, fmt.Errorf("rendering chapter %s: %w", ch.ID, err)
	}

	prev, next, err := s.Neighbors(ctx, ch.Episode)
	if err != nil {
		return nil, err
	}

	return &Page{
		Chapter: ch,
		Body:    body,
		HasBody: ch.Content != "",
		Prev:    prev,
		Next:    next,
	}, nil
}

// Neighbors returns the chapters adjacent to the given episode number.
// A nil chapter means the sequence boundary in that direction.
func (s *Service) Neighbors(ctx context.Context, episode int) (prev, next *store.Chapter, err error) {
	prev, err = s.chapters.PreviousChapter(ctx, episode)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("looking up previous chapter: %w", err)
		}
		prev = nil
	}

	next, err = s.chapters.NextChapter(ctx, episode)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("looking up next chapter: %w", err)
		}
		next = nil
	}

	return prev, next, nil
}

// render converts a chapter's markdown body to HTML, consulting the cache.
// Chapters without content render as empty; the template shows a placeholder.
func (s *Service) render(ch *store.Chapter) (template.HTML, error) {
	if ch.Content == "" {
		return "", nil
	}

	key := ch.ID + "@" + strconv.FormatInt(ch.UpdatedAt.Unix(), 10)
	if html, ok := s.cache.Get(key); ok {
		return html, nil
	}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(ch.Content), &buf); err != nil {
		return "", err
	}

	html := template.HTML(buf.String())
	s.cache.Put(key, html)

	s.logger.Debug("rendered chapter body", "id", ch.ID, "bytes", buf.Len())
	return html, nil
}
