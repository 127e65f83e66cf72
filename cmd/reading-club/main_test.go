// ABOUTME: Tests for CLI helpers
// ABOUTME: Covers bootstrap arg parsing, username derivation, and chapter file parsing

package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilyrose/reading-club/internal/store"
)

func writeFileForTest(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

func TestParseBootstrapArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"separate flag", []string{"--name", "Lily-Rose"}, "Lily-Rose", false},
		{"equals form", []string{"--name=Lily-Rose"}, "Lily-Rose", false},
		{"short flag", []string{"-n", "Lily-Rose"}, "Lily-Rose", false},
		{"short equals", []string{"-n=Lily-Rose"}, "Lily-Rose", false},
		{"trims whitespace", []string{"--name", "  Lily-Rose  "}, "Lily-Rose", false},
		{"missing value", []string{"--name"}, "", true},
		{"missing flag", []string{}, "", true},
		{"whitespace only", []string{"--name", "   "}, "", true},
		{"unknown flag", []string{"--nope", "x"}, "", true},
		{"stray argument", []string{"Lily-Rose"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBootstrapArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsernameFromDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lily-Rose", "lily_rose"},
		{"Lily Rose Smith", "lily_rose_smith"},
		{"ALLCAPS", "allcaps"},
		{"123 go", "reader_123_go"},
		{"!!!", "reader_"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, usernameFromDisplayName(tt.in), "input %q", tt.in)
	}
}

func TestParseChapterFile(t *testing.T) {
	fm, body, err := parseChapterFile([]byte(`---
episode: 3
title: "The Dragon's Cave"
---

# The Dragon's Cave

It was *very* dark.
`))
	require.NoError(t, err)
	assert.Equal(t, 3, fm.Episode)
	assert.Equal(t, "The Dragon's Cave", fm.Title)
	assert.Contains(t, body, "# The Dragon's Cave")
	assert.Contains(t, body, "It was *very* dark.")
}

func TestParseChapterFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no front matter", "# Just markdown\n"},
		{"unterminated", "---\nepisode: 1\ntitle: x\n"},
		{"missing title", "---\nepisode: 1\n---\nbody\n"},
		{"zero episode", "---\nepisode: 0\ntitle: x\n---\nbody\n"},
		{"bad yaml", "---\n[not yaml\n---\nbody\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseChapterFile([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestImportChapterFile_Upsert(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dir := t.TempDir()
	path := dir + "/ch01.md"

	write := func(content string) {
		require.NoError(t, writeFileForTest(path, content))
	}

	write("---\nepisode: 1\ntitle: Draft\n---\nfirst pass\n")
	created, err := importChapterFile(context.Background(), s, path)
	require.NoError(t, err)
	assert.True(t, created)

	write("---\nepisode: 1\ntitle: Final\n---\nsecond pass\n")
	created, err = importChapterFile(context.Background(), s, path)
	require.NoError(t, err)
	assert.False(t, created)

	ch, err := s.GetChapterByEpisode(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Final", ch.Title)
	assert.Equal(t, "second pass", ch.Content)
}
