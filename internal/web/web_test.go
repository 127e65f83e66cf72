// ABOUTME: Tests for the web UI handlers
// ABOUTME: Covers auth gating, shelf pages, the chapter reader, and account flows

package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lilyrose/reading-club/internal/bookcase"
	"github.com/lilyrose/reading-club/internal/library"
	"github.com/lilyrose/reading-club/internal/store"
)

// setupTestSite creates a Site backed by an in-memory store.
func setupTestSite(t *testing.T) (*Site, *http.ServeMux, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lib := library.NewService(st)
	t.Cleanup(lib.Close)

	site := New(st, lib, bookcase.Default(), nil, Config{
		BaseURL: "https://club.example.com",
	})
	t.Cleanup(site.Close)

	mux := http.NewServeMux()
	site.RegisterRoutes(mux)

	return site, mux, st
}

// createTestReader inserts a reader with a bcrypt password hash.
func createTestReader(t *testing.T, st store.Store, username, password string) *store.Reader {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	reader := &store.Reader{
		ID:           "reader-" + username,
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  username,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, st.CreateReader(context.Background(), reader))
	return reader
}

// loginCookie creates a session for the reader and returns its cookie.
func loginCookie(t *testing.T, st store.Store, readerID string) *http.Cookie {
	t.Helper()

	session := &store.Session{
		ID:        "session-" + readerID,
		ReaderID:  readerID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateSession(context.Background(), session))
	return &http.Cookie{Name: SessionCookieName, Value: session.ID}
}

// createTestChapter inserts a chapter.
func createTestChapter(t *testing.T, st store.Store, id string, episode int, title, content string) *store.Chapter {
	t.Helper()

	now := time.Now()
	ch := &store.Chapter{
		ID:        id,
		Episode:   episode,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.CreateChapter(context.Background(), ch))
	return ch
}

func TestHome_RequiresLogin(t *testing.T) {
	_, mux, _ := setupTestSite(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestHome_RedirectsToFirstShelf(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/bookcase/reading", rec.Header().Get("Location"))
}

func TestShelf_RendersLabelAndChapters(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")
	createTestChapter(t, st, "ch-1", 1, "The Beginning", "# Hello")

	req := httptest.NewRequest(http.MethodGet, "/bookcase/reading", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Books we&#39;re reading.")
	assert.Contains(t, body, "The Beginning")
	assert.Contains(t, body, "/chapters/ch-1")
}

func TestShelf_MessyKeyRedirectsToCanonical(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	req := httptest.NewRequest(http.MethodGet, "/bookcase/Creating%20", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/bookcase/creating", rec.Header().Get("Location"))
}

func TestShelf_CanonicalCreatingPage(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	req := httptest.NewRequest(http.MethodGet, "/bookcase/creating", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Books I&#39;m creating.")
}

func TestShelf_UnknownKeyIs404(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	req := httptest.NewRequest(http.MethodGet, "/bookcase/horror", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")
}

func TestShelf_WrapAroundNavigation(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")
	cookie := loginCookie(t, st, reader.ID)

	// First shelf's back link wraps to the last shelf
	req := httptest.NewRequest(http.MethodGet, "/bookcase/reading", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/bookcase/finished"`)
	assert.Contains(t, rec.Body.String(), `href="/bookcase/creating"`)
}

func TestChapter_RendersBodyAndNav(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")
	createTestChapter(t, st, "ch-1", 1, "The Beginning", "intro")
	createTestChapter(t, st, "ch-2", 2, "The Middle", "some *emphasis* here")
	createTestChapter(t, st, "ch-3", 3, "The End", "outro")

	req := httptest.NewRequest(http.MethodGet, "/chapters/ch-2", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "The Middle")
	assert.Contains(t, body, "<em>emphasis</em>")
	assert.Contains(t, body, "/chapters/ch-1")
	assert.Contains(t, body, "/chapters/ch-3")
}

func TestChapter_BoundariesDisableLinks(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")
	cookie := loginCookie(t, st, reader.ID)
	createTestChapter(t, st, "ch-1", 1, "Only Chapter", "alone")

	req := httptest.NewRequest(http.MethodGet, "/chapters/ch-1", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Start of the book")
	assert.Contains(t, body, "The end, for now")
}

func TestChapter_UnknownIs404(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	req := httptest.NewRequest(http.MethodGet, "/chapters/nope", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// postForm builds a form POST with a matching CSRF cookie and field.
func postForm(target string, values url.Values) *http.Request {
	values.Set("csrf_token", "test-csrf-token")
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "test-csrf-token"})
	return req
}

func TestLogin_Success(t *testing.T) {
	_, mux, st := setupTestSite(t)
	createTestReader(t, st, "lily", "password123")

	req := postForm("/login", url.Values{
		"username": {"lily"},
		"password": {"password123"},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "expected session cookie to be set")

	session, err := st.GetSession(context.Background(), sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "reader-lily", session.ReaderID)
}

func TestLogin_WrongPassword(t *testing.T) {
	_, mux, st := setupTestSite(t)
	createTestReader(t, st, "lily", "password123")

	req := postForm("/login", url.Values{
		"username": {"lily"},
		"password": {"wrong"},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
}

func TestLogin_UnknownUser(t *testing.T) {
	_, mux, _ := setupTestSite(t)

	req := postForm("/login", url.Values{
		"username": {"ghost"},
		"password": {"whatever"},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
}

func TestLogin_MissingCSRF(t *testing.T) {
	_, mux, st := setupTestSite(t)
	createTestReader(t, st, "lily", "password123")

	form := url.Values{"username": {"lily"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request")
}

func TestAuthCallback_RedeemsCode(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	code := &store.LoginCode{
		ID:        "lc-1",
		Code:      "one-time-code",
		ReaderID:  reader.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, st.CreateLoginCode(context.Background(), code))

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=one-time-code", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found, "expected session cookie after redeeming code")
}

func TestAuthCallback_CodeIsSingleUse(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	code := &store.LoginCode{
		ID:        "lc-1",
		Code:      "one-time-code",
		ReaderID:  reader.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, st.CreateLoginCode(context.Background(), code))

	first := httptest.NewRecorder()
	mux.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/auth/callback?code=one-time-code", nil))
	require.Equal(t, http.StatusSeeOther, first.Code)

	second := httptest.NewRecorder()
	mux.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/auth/callback?code=one-time-code", nil))

	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "already been used")
}

func TestAuthCallback_ExpiredCode(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	code := &store.LoginCode{
		ID:        "lc-1",
		Code:      "stale-code",
		ReaderID:  reader.ID,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, st.CreateLoginCode(context.Background(), code))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=stale-code", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestAuthCallback_UnknownCode(t *testing.T) {
	_, mux, _ := setupTestSite(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=nope", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid login link")
}

func TestLogout_DeletesSession(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")
	cookie := loginCookie(t, st, reader.ID)

	req := postForm("/logout", url.Values{})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	_, err := st.GetSession(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestInviteSignup_CreatesReader(t *testing.T) {
	_, mux, st := setupTestSite(t)

	invite := &store.Invite{
		ID:        "invite-token",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateInvite(context.Background(), invite))

	req := postForm("/invite/invite-token", url.Values{
		"username":     {"newbie"},
		"password":     {"password123"},
		"display_name": {"The Newbie"},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)

	reader, err := st.GetReaderByUsername(context.Background(), "newbie")
	require.NoError(t, err)
	assert.Equal(t, "The Newbie", reader.DisplayName)

	// Invite is now spent
	_, err = st.GetInvite(context.Background(), "invite-token")
	assert.ErrorIs(t, err, store.ErrInviteUsed)
}

func TestInviteSignup_UsedInviteRejected(t *testing.T) {
	_, mux, st := setupTestSite(t)

	invite := &store.Invite{
		ID:        "invite-token",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateInvite(context.Background(), invite))
	createTestReader(t, st, "first", "password123")
	require.NoError(t, st.UseInvite(context.Background(), "invite-token", "reader-first"))

	req := postForm("/invite/invite-token", url.Values{
		"username": {"second"},
		"password": {"password123"},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already been used")

	_, err := st.GetReaderByUsername(context.Background(), "second")
	assert.ErrorIs(t, err, store.ErrReaderNotFound)
}

func TestInviteSignup_BadUsername(t *testing.T) {
	_, mux, st := setupTestSite(t)

	invite := &store.Invite{
		ID:        "invite-token",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateInvite(context.Background(), invite))

	req := postForm("/invite/invite-token", url.Values{
		"username": {"no spaces allowed"},
		"password": {"password123"},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username must be")
}

func TestCreateInvite_ReturnsShareableURL(t *testing.T) {
	_, mux, st := setupTestSite(t)
	reader := createTestReader(t, st, "lily", "password123")

	req := httptest.NewRequest(http.MethodPost, "/invites", nil)
	req.AddCookie(loginCookie(t, st, reader.ID))
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "test-csrf-token"})
	req.Header.Set("X-CSRF-Token", "test-csrf-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://club.example.com/invite/")
}

func TestStaticAssets_NoAuthRequired(t *testing.T) {
	_, mux, _ := setupTestSite(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
