// ABOUTME: Account handlers: password login, login code redemption, logout
// ABOUTME: Also covers invite-based signup and invite creation

package web

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lilyrose/reading-club/internal/store"
)

// handleLoginPage renders the login page
func (s *Site) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// If already logged in, go straight to the bookcase
	if _, err := s.readerFromSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	_, csrfToken := s.ensureCSRFToken(w, r)
	s.renderLoginPage(w, "", csrfToken)
}

// handleLogin processes login form submission
func (s *Site) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "Invalid form data", csrfToken)
		return
	}

	if !s.validateCSRF(r) {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "Invalid request, please try again", csrfToken)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	if username == "" || password == "" {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "Username and password required", csrfToken)
		return
	}

	reader, err := s.store.GetReaderByUsername(r.Context(), username)

	// Use a dummy hash for timing-safe comparison when the reader doesn't
	// exist. This prevents timing attacks that could enumerate usernames.
	dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

	if err != nil {
		if errors.Is(err, store.ErrReaderNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			_, csrfToken := s.ensureCSRFToken(w, r)
			s.renderLoginPage(w, "Invalid username or password", csrfToken)
			return
		}
		s.logger.Error("failed to get reader", "error", err)
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "An error occurred", csrfToken)
		return
	}

	if reader.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "Password login not enabled for this account", csrfToken)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(reader.PasswordHash), []byte(password)); err != nil {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "Invalid username or password", csrfToken)
		return
	}

	if err := s.createSession(w, r, reader.ID); err != nil {
		s.logger.Error("failed to create session", "error", err)
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "An error occurred", csrfToken)
		return
	}

	s.logger.Info("reader login successful", "username", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAuthCallback exchanges a one-time login code for a browser session.
// The code arrives as a query parameter from an out-of-band login link.
func (s *Site) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "Missing login code", csrfToken)
		return
	}

	lc, err := s.store.RedeemLoginCode(r.Context(), code)
	if err != nil {
		_, csrfToken := s.ensureCSRFToken(w, r)
		switch {
		case errors.Is(err, store.ErrLoginCodeNotFound):
			s.renderLoginPage(w, "Invalid login link", csrfToken)
		case errors.Is(err, store.ErrLoginCodeUsed):
			s.renderLoginPage(w, "This login link has already been used", csrfToken)
		case errors.Is(err, store.ErrLoginCodeExpired):
			s.renderLoginPage(w, "This login link has expired", csrfToken)
		default:
			s.logger.Error("failed to redeem login code", "error", err)
			s.renderLoginPage(w, "An error occurred", csrfToken)
		}
		return
	}

	if err := s.createSession(w, r, lc.ReaderID); err != nil {
		s.logger.Error("failed to create session", "error", err)
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderLoginPage(w, "An error occurred", csrfToken)
		return
	}

	s.logger.Info("login code redeemed", "reader_id", lc.ReaderID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout logs out the current reader
func (s *Site) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		// Invalid CSRF doesn't block logout, just gets logged
		if !s.validateCSRF(r) {
			s.logger.Warn("logout request with invalid CSRF token")
		}
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil {
		_ = s.store.DeleteSession(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleInvitePage renders the signup page for an invite link
func (s *Site) handleInvitePage(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		http.Error(w, "Invalid invite link", http.StatusBadRequest)
		return
	}

	r, csrfToken := s.ensureCSRFToken(w, r)

	_, err := s.store.GetInvite(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInviteNotFound):
			s.renderInvitePage(w, token, "Invalid invite link", csrfToken)
		case errors.Is(err, store.ErrInviteUsed):
			s.renderInvitePage(w, token, "This invite has already been used", csrfToken)
		case errors.Is(err, store.ErrInviteExpired):
			s.renderInvitePage(w, token, "This invite has expired", csrfToken)
		default:
			s.logger.Error("failed to get invite", "error", err)
			s.renderInvitePage(w, token, "An error occurred", csrfToken)
		}
		return
	}

	s.renderInvitePage(w, token, "", csrfToken)
}

// handleInviteSignup processes the signup form from an invite link
func (s *Site) handleInviteSignup(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		http.Error(w, "Invalid invite link", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, "Invalid form data", csrfToken)
		return
	}

	if !s.validateCSRF(r) {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, "Invalid request, please try again", csrfToken)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	displayName := r.FormValue("display_name")

	if username == "" || password == "" {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, "Username and password required", csrfToken)
		return
	}

	if errMsg := validateUsername(username); errMsg != "" {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, errMsg, csrfToken)
		return
	}

	if len(password) < 8 {
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, "Password must be at least 8 characters", csrfToken)
		return
	}

	if displayName == "" {
		displayName = username
	}

	// Re-check the invite right before use
	if _, err := s.store.GetInvite(r.Context(), token); err != nil {
		_, csrfToken := s.ensureCSRFToken(w, r)
		switch {
		case errors.Is(err, store.ErrInviteUsed):
			s.renderInvitePage(w, token, "This invite has already been used", csrfToken)
		case errors.Is(err, store.ErrInviteExpired):
			s.renderInvitePage(w, token, "This invite has expired", csrfToken)
		default:
			s.renderInvitePage(w, token, "Invalid invite link", csrfToken)
		}
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, "An error occurred", csrfToken)
		return
	}

	readerID, err := generateSecureToken(16)
	if err != nil {
		s.logger.Error("failed to generate reader ID", "error", err)
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, "An error occurred", csrfToken)
		return
	}

	reader := &store.Reader{
		ID:           readerID,
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    time.Now(),
	}

	if err := s.store.CreateReader(r.Context(), reader); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			_, csrfToken := s.ensureCSRFToken(w, r)
			s.renderInvitePage(w, token, "Username already taken", csrfToken)
			return
		}
		s.logger.Error("failed to create reader", "error", err)
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderInvitePage(w, token, "An error occurred", csrfToken)
		return
	}

	if err := s.store.UseInvite(r.Context(), token, readerID); err != nil {
		s.logger.Error("failed to mark invite as used", "error", err)
		// Reader was created, so continue
	}

	if err := s.createSession(w, r, readerID); err != nil {
		s.logger.Error("failed to create session", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	s.logger.Info("reader joined via invite", "username", username, "invite", token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleCreateInvite creates a new invite link (htmx partial response)
func (s *Site) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	// htmx sends the CSRF token via header
	if !s.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}

	reader := readerFromContext(r)

	token, err := generateSecureToken(32)
	if err != nil {
		s.logger.Error("failed to generate invite token", "error", err)
		http.Error(w, "Failed to create invite", http.StatusInternalServerError)
		return
	}

	invite := &store.Invite{
		ID:        token,
		CreatedBy: reader.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.config.InviteTTL),
	}

	if err := s.store.CreateInvite(r.Context(), invite); err != nil {
		s.logger.Error("failed to create invite", "error", err)
		http.Error(w, "Failed to create invite", http.StatusInternalServerError)
		return
	}

	inviteURL := s.config.BaseURL + "/invite/" + token
	s.logger.Info("created invite", "created_by", reader.Username, "token", token)

	s.renderInviteCreated(w, inviteURL)
}
