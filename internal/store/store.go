// ABOUTME: Store interface and data types for reading-club persistence
// ABOUTME: Defines Chapter, Reader, Session structs and the store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEpisode is returned when a chapter's episode number is
// already taken. Episode numbers define the reading order and must be unique.
var ErrDuplicateEpisode = errors.New("episode number already in use")

// ErrReaderNotFound is returned when a reader account doesn't exist.
var ErrReaderNotFound = errors.New("reader not found")

// ErrSessionNotFound is returned when a session doesn't exist or is expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrInviteNotFound is returned when an invite doesn't exist.
var ErrInviteNotFound = errors.New("invite not found")

// ErrInviteUsed is returned when trying to use an already-used invite.
var ErrInviteUsed = errors.New("invite already used")

// ErrInviteExpired is returned when an invite has expired.
var ErrInviteExpired = errors.New("invite expired")

// ErrLoginCodeNotFound is returned when a login code doesn't exist.
var ErrLoginCodeNotFound = errors.New("login code not found")

// ErrLoginCodeUsed is returned when a login code was already redeemed.
var ErrLoginCodeUsed = errors.New("login code already used")

// ErrLoginCodeExpired is returned when a login code has expired.
var ErrLoginCodeExpired = errors.New("login code expired")

// ErrUsernameExists is returned when creating a reader with a taken username.
var ErrUsernameExists = errors.New("username already exists")

// Chapter is a unit of readable content. Episode numbers are unique and
// define the sequence the reader page navigates through. Content is the
// markdown body; an empty string means the chapter has no body yet
// (stored as NULL) and the reader renders a placeholder.
type Chapter struct {
	ID        string
	Episode   int
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reader is a club member who can log in to the site.
type Reader struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash, empty if passkey-only
	DisplayName  string
	CreatedAt    time.Time
}

// Session is an authenticated browser session.
type Session struct {
	ID        string
	ReaderID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Invite is a single-use signup invitation link.
type Invite struct {
	ID        string
	CreatedBy string // reader ID, empty for the bootstrap invite
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	UsedBy    string
}

// LoginCode is a one-time authorization code. The code is handed to a
// reader out of band and redeemed at /auth/callback for a session.
type LoginCode struct {
	ID        string
	Code      string
	ReaderID  string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// PasskeyCredential is a WebAuthn credential registered by a reader.
type PasskeyCredential struct {
	ID              string
	ReaderID        string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	Transports      string // JSON array
	SignCount       uint32
	CreatedAt       time.Time
}

// ChapterStore defines chapter persistence, including the sequential
// navigator queries used by the reader page.
type ChapterStore interface {
	CreateChapter(ctx context.Context, ch *Chapter) error
	GetChapter(ctx context.Context, id string) (*Chapter, error)
	GetChapterByEpisode(ctx context.Context, episode int) (*Chapter, error)
	UpdateChapter(ctx context.Context, ch *Chapter) error
	DeleteChapter(ctx context.Context, id string) error
	ListChapters(ctx context.Context) ([]*Chapter, error)

	// PreviousChapter returns the chapter with the greatest episode number
	// strictly less than episode. Returns ErrNotFound at the start of the
	// sequence; callers treat that as a boundary, not a failure.
	PreviousChapter(ctx context.Context, episode int) (*Chapter, error)

	// NextChapter returns the chapter with the smallest episode number
	// strictly greater than episode. Returns ErrNotFound at the end of
	// the sequence.
	NextChapter(ctx context.Context, episode int) (*Chapter, error)
}

// ReaderStore defines account, session, invite, login-code, and passkey
// persistence for the web UI.
type ReaderStore interface {
	// Readers
	CreateReader(ctx context.Context, reader *Reader) error
	GetReader(ctx context.Context, id string) (*Reader, error)
	GetReaderByUsername(ctx context.Context, username string) (*Reader, error)
	UpdateReaderPassword(ctx context.Context, id, passwordHash string) error
	CountReaders(ctx context.Context) (int, error)

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error

	// Invites
	CreateInvite(ctx context.Context, invite *Invite) error
	GetInvite(ctx context.Context, id string) (*Invite, error)
	UseInvite(ctx context.Context, inviteID, readerID string) error

	// Login codes (session exchange)
	CreateLoginCode(ctx context.Context, code *LoginCode) error
	RedeemLoginCode(ctx context.Context, code string) (*LoginCode, error)
	DeleteExpiredLoginCodes(ctx context.Context) error

	// Passkey credentials
	CreatePasskeyCredential(ctx context.Context, cred *PasskeyCredential) error
	GetPasskeyCredentialsByReader(ctx context.Context, readerID string) ([]*PasskeyCredential, error)
	GetPasskeyCredentialByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error)
	UpdatePasskeyCredentialSignCount(ctx context.Context, id string, signCount uint32) error
	DeletePasskeyCredential(ctx context.Context, id string) error
}

// Store combines everything the server needs from persistence.
type Store interface {
	ChapterStore
	ReaderStore
	Close() error
}
