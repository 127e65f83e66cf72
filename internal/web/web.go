// ABOUTME: Web UI package for the reading club site
// ABOUTME: Provides session auth, CSRF protection, and route registration

package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/lilyrose/reading-club/internal/auth"
	"github.com/lilyrose/reading-club/internal/bookcase"
	"github.com/lilyrose/reading-club/internal/library"
	"github.com/lilyrose/reading-club/internal/store"
)

// Username validation regex: alphanumeric + underscores, 3-32 characters
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,31}$`)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "club_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "club_csrf"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const readerContextKey contextKey = "club_reader"
const csrfContextKey contextKey = "csrf_token"

// Config holds web UI configuration.
type Config struct {
	// Title is shown in page headers.
	Title string

	// BaseURL is the external URL for generating invite links and
	// deriving the passkey relying-party origin.
	BaseURL string

	// SessionTTL is how long browser sessions last.
	SessionTTL time.Duration

	// InviteTTL is how long invite links are valid.
	InviteTTL time.Duration
}

// Site handles the club's web routes: bookcase pages, the chapter reader,
// and account management.
type Site struct {
	store           store.Store
	library         *library.Service
	catalog         *bookcase.Catalog
	tokens          auth.TokenVerifier
	config          Config
	logger          *slog.Logger
	webauthn        *webauthn.WebAuthn
	passkeySessions *passkeySessionStore
}

// New creates a new Site handler. tokens may be nil, which disables the
// JSON chapter API.
func New(st store.Store, lib *library.Service, catalog *bookcase.Catalog, tokens auth.TokenVerifier, cfg Config) *Site {
	if cfg.Title == "" {
		cfg.Title = "Lily-Rose's Reading Club"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = 24 * time.Hour
	}

	s := &Site{
		store:   st,
		library: lib,
		catalog: catalog,
		tokens:  tokens,
		config:  cfg,
		logger:  slog.Default().With("component", "web"),
	}

	// Initialize passkeys (errors are logged but don't prevent startup)
	if err := s.initPasskeys(); err != nil {
		s.logger.Warn("failed to initialize WebAuthn, passkey login disabled", "error", err)
	}

	return s
}

// Close cleans up site resources.
func (s *Site) Close() {
	if s.passkeySessions != nil {
		s.passkeySessions.Close()
	}
}

// RegisterRoutes registers all site routes on the given mux.
func (s *Site) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /login/passkey/begin", s.handlePasskeyLoginBegin)
	mux.HandleFunc("POST /login/passkey/finish", s.handlePasskeyLoginFinish)
	mux.HandleFunc("GET /invite/{token}", s.handleInvitePage)
	mux.HandleFunc("POST /invite/{token}", s.handleInviteSignup)
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticHandler()))

	// Protected routes (session required)
	mux.HandleFunc("GET /{$}", s.requireAuth(s.handleHome))
	mux.HandleFunc("GET /bookcase/{key}", s.requireAuth(s.handleShelf))
	mux.HandleFunc("GET /chapters/{id}", s.requireAuth(s.handleChapter))
	mux.HandleFunc("POST /logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("POST /invites", s.requireAuth(s.handleCreateInvite))
	mux.HandleFunc("POST /passkeys/register/begin", s.requireAuth(s.handlePasskeyRegisterBegin))
	mux.HandleFunc("POST /passkeys/register/finish", s.requireAuth(s.handlePasskeyRegisterFinish))

	// JSON chapter API (JWT bearer)
	mux.HandleFunc("GET /api/chapters", s.requireToken(s.handleAPIListChapters))
	mux.HandleFunc("POST /api/chapters", s.requireToken(s.handleAPICreateChapter))
	mux.HandleFunc("GET /api/chapters/{id}", s.requireToken(s.handleAPIGetChapter))
	mux.HandleFunc("PUT /api/chapters/{id}", s.requireToken(s.handleAPIUpdateChapter))
	mux.HandleFunc("DELETE /api/chapters/{id}", s.requireToken(s.handleAPIDeleteChapter))
}

// requireAuth wraps a handler, redirecting to the login page when the
// request has no valid session.
func (s *Site) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reader, err := s.readerFromSession(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), readerContextKey, reader)
		next(w, r.WithContext(ctx))
	}
}

// readerFromSession retrieves the authenticated reader from the session cookie.
func (s *Site) readerFromSession(r *http.Request) (*store.Reader, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}

	return s.store.GetReader(r.Context(), session.ReaderID)
}

// readerFromContext retrieves the authenticated reader from the request context.
func readerFromContext(r *http.Request) *store.Reader {
	reader, _ := r.Context().Value(readerContextKey).(*store.Reader)
	return reader
}

// csrfFromContext retrieves the CSRF token from the request context.
func csrfFromContext(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context.
func (s *Site) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		s.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form or header against the cookie.
func (s *Site) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// createSession creates a new session for a reader and sets the cookie.
func (s *Site) createSession(w http.ResponseWriter, r *http.Request, readerID string) error {
	sessionID, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	session := &store.Session{
		ID:        sessionID,
		ReaderID:  readerID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.config.SessionTTL),
	}

	if err := s.store.CreateSession(r.Context(), session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// generateSecureToken creates a hex-encoded random token.
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// validateUsername returns an error message, or "" when the username is valid.
func validateUsername(username string) string {
	if !usernameRegex.MatchString(username) {
		return "Username must be 3-32 characters: letters, digits, and underscores, starting with a letter"
	}
	return ""
}
