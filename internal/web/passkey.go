// ABOUTME: WebAuthn/Passkey authentication support for the reading club
// ABOUTME: Implements registration and login flows using go-webauthn library

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/lilyrose/reading-club/internal/store"
)

// webAuthnReader wraps a Reader to implement the webauthn.User interface.
type webAuthnReader struct {
	reader *store.Reader
	creds  []*store.PasskeyCredential
}

func (u *webAuthnReader) WebAuthnID() []byte {
	return []byte(u.reader.ID)
}

func (u *webAuthnReader) WebAuthnName() string {
	return u.reader.Username
}

func (u *webAuthnReader) WebAuthnDisplayName() string {
	if u.reader.DisplayName != "" {
		return u.reader.DisplayName
	}
	return u.reader.Username
}

func (u *webAuthnReader) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.creds))
	for i, c := range u.creds {
		creds[i] = webauthn.Credential{
			ID:              c.CredentialID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignCount,
			},
		}
		if c.Transports != "" {
			var transports []protocol.AuthenticatorTransport
			_ = json.Unmarshal([]byte(c.Transports), &transports)
			creds[i].Transport = transports
		}
	}
	return creds
}

// passkeyChallenge stores WebAuthn session data for an in-progress ceremony.
type passkeyChallenge struct {
	session   *webauthn.SessionData
	readerID  string
	expiresAt time.Time
}

// passkeySessionStore is an in-memory store for WebAuthn challenges.
type passkeySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*passkeyChallenge // keyed by session token
	cancel   context.CancelFunc
}

func newPasskeySessionStore() *passkeySessionStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &passkeySessionStore{
		sessions: make(map[string]*passkeyChallenge),
		cancel:   cancel,
	}
	go s.cleanupLoop(ctx)
	return s
}

// Close stops the cleanup goroutine.
func (s *passkeySessionStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *passkeySessionStore) Set(token string, session *webauthn.SessionData, readerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &passkeyChallenge{
		session:   session,
		readerID:  readerID,
		expiresAt: time.Now().Add(5 * time.Minute),
	}
}

func (s *passkeySessionStore) Get(token string) (*webauthn.SessionData, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sessions[token]
	if !ok || time.Now().After(data.expiresAt) {
		return nil, "", false
	}
	return data.session, data.readerID, true
}

func (s *passkeySessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *passkeySessionStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for k, v := range s.sessions {
				if now.After(v.expiresAt) {
					delete(s.sessions, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// derivePasskeyConfig extracts rpID and rpOrigins from a base URL.
// Returns localhost defaults if the URL is empty or invalid.
func derivePasskeyConfig(baseURL string) (rpID string, rpOrigins []string) {
	rpID = "localhost"
	rpOrigins = []string{"http://localhost", "https://localhost"}

	if baseURL == "" {
		return rpID, rpOrigins
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return rpID, rpOrigins
	}

	host := parsed.Hostname()
	if host == "" {
		return rpID, rpOrigins
	}

	rpID = host
	rpOrigins = []string{baseURL}
	if parsed.Scheme == "https" {
		rpOrigins = append(rpOrigins, "http://"+parsed.Host)
	} else {
		rpOrigins = append(rpOrigins, "https://"+parsed.Host)
	}
	return rpID, rpOrigins
}

// initPasskeys initializes the WebAuthn configuration.
func (s *Site) initPasskeys() error {
	rpID, rpOrigins := derivePasskeyConfig(s.config.BaseURL)

	wconfig := &webauthn.Config{
		RPDisplayName: s.config.Title,
		RPID:          rpID,
		RPOrigins:     rpOrigins,
	}

	w, err := webauthn.New(wconfig)
	if err != nil {
		return err
	}

	s.webauthn = w
	s.passkeySessions = newPasskeySessionStore()
	return nil
}

// handlePasskeyRegisterBegin starts the passkey registration ceremony.
func (s *Site) handlePasskeyRegisterBegin(w http.ResponseWriter, r *http.Request) {
	if s.webauthn == nil {
		http.Error(w, "Passkeys not configured", http.StatusServiceUnavailable)
		return
	}

	reader := readerFromContext(r)
	if reader == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	existingCreds, err := s.store.GetPasskeyCredentialsByReader(r.Context(), reader.ID)
	if err != nil {
		s.logger.Error("failed to get existing credentials", "error", err)
		existingCreds = nil
	}

	waUser := &webAuthnReader{reader: reader, creds: existingCreds}

	options, session, err := s.webauthn.BeginRegistration(waUser)
	if err != nil {
		s.logger.Error("failed to begin registration", "error", err)
		http.Error(w, "Failed to start registration", http.StatusInternalServerError)
		return
	}

	sessionToken, err := generateSecureToken(32)
	if err != nil {
		http.Error(w, "Failed to generate session", http.StatusInternalServerError)
		return
	}
	s.passkeySessions.Set(sessionToken, session, reader.ID)

	response := struct {
		Options      *protocol.CredentialCreation `json:"options"`
		SessionToken string                       `json:"sessionToken"`
	}{
		Options:      options,
		SessionToken: sessionToken,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Debug("failed to encode response", "error", err)
	}
}

// passkeyCeremonyRequest holds the parsed body of a finish request.
type passkeyCeremonyRequest struct {
	sessionToken string
	response     json.RawMessage
}

func parsePasskeyCeremonyRequest(r *http.Request) (*passkeyCeremonyRequest, error) {
	var req struct {
		SessionToken string          `json:"sessionToken"`
		Response     json.RawMessage `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &passkeyCeremonyRequest{sessionToken: req.SessionToken, response: req.Response}, nil
}

// storePasskeyCredential creates and stores a verified credential.
func (s *Site) storePasskeyCredential(ctx context.Context, readerID string, cred *webauthn.Credential) (string, error) {
	credID, err := generateSecureToken(16)
	if err != nil {
		return "", err
	}

	transportsJSON, err := json.Marshal(cred.Transport)
	if err != nil {
		return "", err
	}

	storeCred := &store.PasskeyCredential{
		ID:              credID,
		ReaderID:        readerID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transports:      string(transportsJSON),
		SignCount:       cred.Authenticator.SignCount,
		CreatedAt:       time.Now(),
	}

	if err := s.store.CreatePasskeyCredential(ctx, storeCred); err != nil {
		return "", err
	}
	return credID, nil
}

// handlePasskeyRegisterFinish completes the passkey registration ceremony.
func (s *Site) handlePasskeyRegisterFinish(w http.ResponseWriter, r *http.Request) {
	if s.webauthn == nil {
		http.Error(w, "Passkeys not configured", http.StatusServiceUnavailable)
		return
	}

	reader := readerFromContext(r)
	if reader == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	req, err := parsePasskeyCeremonyRequest(r)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	session, sessionReaderID, ok := s.passkeySessions.Get(req.sessionToken)
	if !ok || sessionReaderID != reader.ID {
		http.Error(w, "Invalid or expired session", http.StatusBadRequest)
		return
	}
	s.passkeySessions.Delete(req.sessionToken)

	parsedResponse, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.response))
	if err != nil {
		s.logger.Error("failed to parse registration response", "error", err)
		http.Error(w, "Invalid response", http.StatusBadRequest)
		return
	}

	existingCreds, _ := s.store.GetPasskeyCredentialsByReader(r.Context(), reader.ID)
	waUser := &webAuthnReader{reader: reader, creds: existingCreds}

	credential, err := s.webauthn.CreateCredential(waUser, *session, parsedResponse)
	if err != nil {
		s.logger.Error("failed to create credential", "error", err)
		http.Error(w, "Failed to verify credential", http.StatusBadRequest)
		return
	}

	credID, err := s.storePasskeyCredential(r.Context(), reader.ID, credential)
	if err != nil {
		s.logger.Error("failed to store credential", "error", err)
		http.Error(w, "Failed to save credential", http.StatusInternalServerError)
		return
	}

	s.logger.Info("passkey registered", "reader_id", reader.ID, "credential_id", credID)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.Debug("failed to encode response", "error", err)
	}
}

// handlePasskeyLoginBegin starts the passkey login ceremony.
func (s *Site) handlePasskeyLoginBegin(w http.ResponseWriter, r *http.Request) {
	if s.webauthn == nil {
		http.Error(w, "Passkeys not configured", http.StatusServiceUnavailable)
		return
	}

	// Discoverable credentials need no username up front
	options, session, err := s.webauthn.BeginDiscoverableLogin()
	if err != nil {
		s.logger.Error("failed to begin login", "error", err)
		http.Error(w, "Failed to start login", http.StatusInternalServerError)
		return
	}

	sessionToken, err := generateSecureToken(32)
	if err != nil {
		http.Error(w, "Failed to generate session", http.StatusInternalServerError)
		return
	}
	s.passkeySessions.Set(sessionToken, session, "")

	response := struct {
		Options      *protocol.CredentialAssertion `json:"options"`
		SessionToken string                        `json:"sessionToken"`
	}{
		Options:      options,
		SessionToken: sessionToken,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Debug("failed to encode response", "error", err)
	}
}

// lookupCredentialReader finds the credential and reader for a login attempt.
func (s *Site) lookupCredentialReader(ctx context.Context, credentialID []byte) (*store.PasskeyCredential, *store.Reader, error) {
	storedCred, err := s.store.GetPasskeyCredentialByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.store.GetReader(ctx, storedCred.ReaderID)
	if err != nil {
		return nil, nil, err
	}
	return storedCred, reader, nil
}

// writeLookupError writes the appropriate HTTP error for a credential lookup failure.
func (s *Site) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Unknown credential", http.StatusUnauthorized)
	} else {
		s.logger.Error("failed to lookup credential", "error", err)
		http.Error(w, "Failed to verify credential", http.StatusInternalServerError)
	}
}

// makeCredentialFinder creates a credential finder function for WebAuthn validation.
func makeCredentialFinder(waUser *webAuthnReader, readerID string) func(rawID, userHandle []byte) (webauthn.User, error) {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		if len(userHandle) > 0 && string(userHandle) != readerID {
			return nil, errors.New("user handle mismatch")
		}
		return waUser, nil
	}
}

// handlePasskeyLoginFinish completes the passkey login ceremony.
func (s *Site) handlePasskeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	if s.webauthn == nil {
		http.Error(w, "Passkeys not configured", http.StatusServiceUnavailable)
		return
	}

	req, err := parsePasskeyCeremonyRequest(r)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	session, _, ok := s.passkeySessions.Get(req.sessionToken)
	if !ok {
		http.Error(w, "Invalid or expired session", http.StatusBadRequest)
		return
	}
	s.passkeySessions.Delete(req.sessionToken)

	parsedResponse, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.response))
	if err != nil {
		s.logger.Error("failed to parse login response", "error", err)
		http.Error(w, "Invalid response", http.StatusBadRequest)
		return
	}

	storedCred, reader, err := s.lookupCredentialReader(r.Context(), parsedResponse.RawID)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	allCreds, _ := s.store.GetPasskeyCredentialsByReader(r.Context(), reader.ID)
	waUser := &webAuthnReader{reader: reader, creds: allCreds}

	credential, err := s.webauthn.ValidateDiscoverableLogin(makeCredentialFinder(waUser, reader.ID), *session, parsedResponse)
	if err != nil {
		s.logger.Error("failed to validate login", "error", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	if err := s.store.UpdatePasskeyCredentialSignCount(r.Context(), storedCred.ID, credential.Authenticator.SignCount); err != nil {
		s.logger.Warn("failed to update sign count", "error", err)
	}

	if err := s.createSession(w, r, reader.ID); err != nil {
		s.logger.Error("failed to create session", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	s.logger.Info("passkey login successful", "reader_id", reader.ID)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok", "redirect": "/"}); err != nil {
		s.logger.Debug("failed to encode response", "error", err)
	}
}
