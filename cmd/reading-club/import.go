// ABOUTME: Chapter import subcommand
// ABOUTME: Loads markdown files with YAML front matter into the store

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lilyrose/reading-club/internal/config"
	"github.com/lilyrose/reading-club/internal/store"
)

// chapterFrontMatter is the YAML header of an importable chapter file.
type chapterFrontMatter struct {
	Episode int    `yaml:"episode"`
	Title   string `yaml:"title"`
}

// parseChapterFile splits a markdown file into front matter and body.
// The file must start with a "---" delimited YAML block carrying episode
// and title; everything after the closing delimiter is the chapter body.
func parseChapterFile(data []byte) (*chapterFrontMatter, string, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	if !strings.HasPrefix(content, "---\n") {
		return nil, "", fmt.Errorf("missing front matter (file must start with ---)")
	}

	rest := content[len("---\n"):]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, "", fmt.Errorf("unterminated front matter")
	}

	header := rest[:idx]
	body := rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	var fm chapterFrontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, "", fmt.Errorf("parsing front matter: %w", err)
	}

	if fm.Episode < 1 {
		return nil, "", fmt.Errorf("front matter episode must be a positive integer")
	}
	if fm.Title == "" {
		return nil, "", fmt.Errorf("front matter title is required")
	}

	return &fm, strings.TrimSpace(body), nil
}

// importChapterFile upserts one chapter file into the store.
// Returns true if a new chapter was created, false if one was updated.
func importChapterFile(ctx context.Context, s store.Store, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	fm, body, err := parseChapterFile(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	now := time.Now()

	existing, err := s.GetChapterByEpisode(ctx, fm.Episode)
	if err == nil {
		existing.Title = fm.Title
		existing.Content = body
		existing.UpdatedAt = now
		if err := s.UpdateChapter(ctx, existing); err != nil {
			return false, fmt.Errorf("updating episode %d: %w", fm.Episode, err)
		}
		return false, nil
	}

	ch := &store.Chapter{
		ID:        uuid.New().String(),
		Episode:   fm.Episode,
		Title:     fm.Title,
		Content:   body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateChapter(ctx, ch); err != nil {
		return false, fmt.Errorf("creating episode %d: %w", fm.Episode, err)
	}
	return true, nil
}

// runImport loads one or more markdown chapter files into the database.
// Existing episodes are updated in place, so re-importing is safe.
func runImport(ctx context.Context) error {
	files := os.Args[2:]
	if len(files) == 0 {
		return fmt.Errorf("usage: reading-club import FILE...")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	var created, updated int
	for _, path := range files {
		wasCreated, err := importChapterFile(ctx, s, path)
		if err != nil {
			return err
		}
		if wasCreated {
			created++
			green.Printf("  ✓ %s (new)\n", path)
		} else {
			updated++
			cyan.Printf("  ✓ %s (updated)\n", path)
		}
	}

	fmt.Printf("\nImported %d chapter(s): %d new, %d updated\n", len(files), created, updated)
	return nil
}
