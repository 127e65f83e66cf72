package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// mustCreateChapter inserts a chapter with the given episode number.
func mustCreateChapter(t *testing.T, s *SQLiteStore, episode int) *Chapter {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	ch := &Chapter{
		ID:        fmt.Sprintf("ch-%03d", episode),
		Episode:   episode,
		Title:     fmt.Sprintf("Chapter %d", episode),
		Content:   fmt.Sprintf("Once upon a time, part %d.", episode),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateChapter(context.Background(), ch))
	return ch
}

func TestStore_CreateChapter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustCreateChapter(t, store, 1)

	retrieved, err := store.GetChapter(ctx, "ch-001")
	require.NoError(t, err)
	assert.Equal(t, 1, retrieved.Episode)
	assert.Equal(t, "Chapter 1", retrieved.Title)
	assert.Equal(t, "Once upon a time, part 1.", retrieved.Content)
}

func TestStore_CreateChapter_DuplicateEpisode(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustCreateChapter(t, store, 1)

	now := time.Now().UTC()
	err := store.CreateChapter(ctx, &Chapter{
		ID:        "ch-other",
		Episode:   1,
		Title:     "Also Chapter 1",
		CreatedAt: now,
		UpdatedAt: now,
	})
	assert.ErrorIs(t, err, ErrDuplicateEpisode)
}

func TestStore_GetChapter_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetChapter(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetChapterByEpisode(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustCreateChapter(t, store, 7)

	ch, err := store.GetChapterByEpisode(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "ch-007", ch.ID)

	_, err = store.GetChapterByEpisode(ctx, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_NullContent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateChapter(ctx, &Chapter{
		ID:        "ch-empty",
		Episode:   1,
		Title:     "Untitled draft",
		Content:   "",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	ch, err := store.GetChapter(ctx, "ch-empty")
	require.NoError(t, err)
	assert.Empty(t, ch.Content)
}

func TestStore_ChapterNavigation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, ep := range []int{1, 2, 3} {
		mustCreateChapter(t, store, ep)
	}

	prev, err := store.PreviousChapter(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, prev.Episode)

	next, err := store.NextChapter(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Episode)

	_, err = store.PreviousChapter(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound, "no chapter precedes the first")

	_, err = store.NextChapter(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound, "no chapter follows the last")
}

func TestStore_ChapterNavigation_Gaps(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, ep := range []int{10, 20, 40} {
		mustCreateChapter(t, store, ep)
	}

	prev, err := store.PreviousChapter(ctx, 40)
	require.NoError(t, err)
	assert.Equal(t, 20, prev.Episode, "nearest preceding episode wins")

	next, err := store.NextChapter(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 20, next.Episode, "nearest following episode wins")

	// Navigation from an episode number with no stored chapter still works.
	next, err = store.NextChapter(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 40, next.Episode)
}

func TestStore_ChapterNavigation_Empty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.PreviousChapter(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.NextChapter(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateChapter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ch := mustCreateChapter(t, store, 1)
	ch.Title = "Chapter One, revised"
	ch.Content = "A better opening."
	ch.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.UpdateChapter(ctx, ch))

	got, err := store.GetChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chapter One, revised", got.Title)
	assert.Equal(t, "A better opening.", got.Content)
}

func TestStore_UpdateChapter_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateChapter(context.Background(), &Chapter{
		ID:        "ghost",
		Episode:   1,
		Title:     "Ghost",
		UpdatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateChapter_EpisodeCollision(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustCreateChapter(t, store, 1)
	ch2 := mustCreateChapter(t, store, 2)

	ch2.Episode = 1
	err := store.UpdateChapter(ctx, ch2)
	assert.ErrorIs(t, err, ErrDuplicateEpisode)
}

func TestStore_DeleteChapter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ch := mustCreateChapter(t, store, 1)

	require.NoError(t, store.DeleteChapter(ctx, ch.ID))

	_, err := store.GetChapter(ctx, ch.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteChapter(ctx, ch.ID), ErrNotFound)
}

func TestStore_ListChapters_EpisodeOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Insert out of order; listing must come back in episode order.
	for _, ep := range []int{3, 1, 2} {
		mustCreateChapter(t, store, ep)
	}

	chapters, err := store.ListChapters(ctx)
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	for i, ch := range chapters {
		assert.Equal(t, i+1, ch.Episode)
	}
}

func TestStore_ListChapters_Empty(t *testing.T) {
	store := setupTestStore(t)

	chapters, err := store.ListChapters(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chapters)
}

func TestStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	mustCreateChapter(t, store, 1)

	chapters, err := store.ListChapters(context.Background())
	require.NoError(t, err)
	assert.Len(t, chapters, 1)
}
