// ABOUTME: Reader account, session, invite, login-code, and passkey persistence
// ABOUTME: Backs password login, the code-exchange flow, and WebAuthn for the web UI

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateReader creates a new reader account.
// Returns ErrUsernameExists if the username is taken.
func (s *SQLiteStore) CreateReader(ctx context.Context, reader *Reader) error {
	query := `
		INSERT INTO readers (id, username, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		reader.ID,
		reader.Username,
		reader.PasswordHash,
		reader.DisplayName,
		reader.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting reader: %w", err)
	}

	s.logger.Debug("created reader", "id", reader.ID, "username", reader.Username)
	return nil
}

// scanReader scans a reader row.
func scanReader(row *sql.Row) (*Reader, error) {
	var r Reader
	var createdAtStr string

	err := row.Scan(&r.ID, &r.Username, &r.PasswordHash, &r.DisplayName, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrReaderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning reader: %w", err)
	}

	r.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &r, nil
}

// GetReader retrieves a reader by ID.
func (s *SQLiteStore) GetReader(ctx context.Context, id string) (*Reader, error) {
	query := `SELECT id, username, password_hash, display_name, created_at FROM readers WHERE id = ?`
	return scanReader(s.db.QueryRowContext(ctx, query, id))
}

// GetReaderByUsername retrieves a reader by username.
func (s *SQLiteStore) GetReaderByUsername(ctx context.Context, username string) (*Reader, error) {
	query := `SELECT id, username, password_hash, display_name, created_at FROM readers WHERE username = ?`
	return scanReader(s.db.QueryRowContext(ctx, query, username))
}

// UpdateReaderPassword sets a new bcrypt hash for a reader.
func (s *SQLiteStore) UpdateReaderPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE readers SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrReaderNotFound
	}
	return nil
}

// CountReaders returns the number of reader accounts. Used by bootstrap
// to detect first-run setup.
func (s *SQLiteStore) CountReaders(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting readers: %w", err)
	}
	return count, nil
}

// CreateSession creates a new browser session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO reader_sessions (id, reader_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.ReaderID,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Expired sessions are treated as
// missing and return ErrSessionNotFound.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, reader_id, created_at, expires_at FROM reader_sessions WHERE id = ?`

	var sess Session
	var createdAtStr, expiresAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(&sess.ID, &sess.ReaderID, &createdAtStr, &expiresAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	sess.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		return nil, ErrSessionNotFound
	}

	return &sess, nil
}

// DeleteSession removes a session by ID. Missing sessions are not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reader_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reader_sessions WHERE expires_at <= ?`, now); err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}
	return nil
}

// CreateInvite creates a signup invite.
func (s *SQLiteStore) CreateInvite(ctx context.Context, invite *Invite) error {
	query := `
		INSERT INTO reader_invites (id, created_by, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		invite.ID,
		nullableString(invite.CreatedBy),
		invite.CreatedAt.UTC().Format(time.RFC3339),
		invite.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting invite: %w", err)
	}
	return nil
}

// GetInvite retrieves an invite and reports its usability.
// Returns ErrInviteUsed or ErrInviteExpired along with no invite when the
// link can no longer be redeemed.
func (s *SQLiteStore) GetInvite(ctx context.Context, id string) (*Invite, error) {
	query := `SELECT id, created_by, created_at, expires_at, used_at, used_by FROM reader_invites WHERE id = ?`

	var inv Invite
	var createdBy, usedAtStr, usedBy sql.NullString
	var createdAtStr, expiresAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &createdBy, &createdAtStr, &expiresAtStr, &usedAtStr, &usedBy)
	if err == sql.ErrNoRows {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invite: %w", err)
	}

	inv.CreatedBy = createdBy.String
	inv.UsedBy = usedBy.String

	inv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	inv.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if usedAtStr.Valid {
		usedAt, err := time.Parse(time.RFC3339, usedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing used_at: %w", err)
		}
		inv.UsedAt = &usedAt
	}

	if inv.UsedAt != nil {
		return nil, ErrInviteUsed
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	return &inv, nil
}

// UseInvite marks an invite as redeemed by the given reader.
// The update is conditional on the invite still being unused and unexpired,
// so concurrent redemptions cannot both succeed.
func (s *SQLiteStore) UseInvite(ctx context.Context, inviteID, readerID string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `
		UPDATE reader_invites
		SET used_at = ?, used_by = ?
		WHERE id = ? AND used_at IS NULL AND expires_at > ?
	`, now, readerID, inviteID, now)
	if err != nil {
		return fmt.Errorf("using invite: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish why the conditional update matched nothing.
		if _, err := s.GetInvite(ctx, inviteID); err != nil {
			return err
		}
		return ErrInviteNotFound
	}

	return nil
}

// CreateLoginCode stores a one-time login code for later redemption.
func (s *SQLiteStore) CreateLoginCode(ctx context.Context, code *LoginCode) error {
	query := `
		INSERT INTO login_codes (id, code, reader_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		code.ID,
		code.Code,
		code.ReaderID,
		code.CreatedAt.UTC().Format(time.RFC3339),
		code.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting login code: %w", err)
	}
	return nil
}

// RedeemLoginCode atomically marks a login code used and returns it.
// Returns ErrLoginCodeNotFound, ErrLoginCodeUsed, or ErrLoginCodeExpired
// when the code cannot be redeemed. A code is redeemable exactly once.
func (s *SQLiteStore) RedeemLoginCode(ctx context.Context, code string) (*LoginCode, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, `
		UPDATE login_codes
		SET used_at = ?
		WHERE code = ? AND used_at IS NULL AND expires_at > ?
	`, now, code, now)
	if err != nil {
		return nil, fmt.Errorf("redeeming login code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, s.loginCodeFailure(ctx, code)
	}

	return s.getLoginCodeByCode(ctx, code)
}

// loginCodeFailure inspects a non-redeemable code to pick the right sentinel.
func (s *SQLiteStore) loginCodeFailure(ctx context.Context, code string) error {
	lc, err := s.getLoginCodeByCode(ctx, code)
	if err != nil {
		return err
	}
	if lc.UsedAt != nil {
		return ErrLoginCodeUsed
	}
	if time.Now().After(lc.ExpiresAt) {
		return ErrLoginCodeExpired
	}
	return ErrLoginCodeNotFound
}

// getLoginCodeByCode fetches a login code row by its code value.
func (s *SQLiteStore) getLoginCodeByCode(ctx context.Context, code string) (*LoginCode, error) {
	query := `SELECT id, code, reader_id, created_at, expires_at, used_at FROM login_codes WHERE code = ?`

	var lc LoginCode
	var usedAtStr sql.NullString
	var createdAtStr, expiresAtStr string

	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&lc.ID, &lc.Code, &lc.ReaderID, &createdAtStr, &expiresAtStr, &usedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrLoginCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying login code: %w", err)
	}

	lc.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	lc.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if usedAtStr.Valid {
		usedAt, err := time.Parse(time.RFC3339, usedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing used_at: %w", err)
		}
		lc.UsedAt = &usedAt
	}

	return &lc, nil
}

// DeleteExpiredLoginCodes removes codes past their expiry.
func (s *SQLiteStore) DeleteExpiredLoginCodes(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM login_codes WHERE expires_at <= ?`, now); err != nil {
		return fmt.Errorf("deleting expired login codes: %w", err)
	}
	return nil
}

// CreatePasskeyCredential stores a new WebAuthn credential for a reader.
func (s *SQLiteStore) CreatePasskeyCredential(ctx context.Context, cred *PasskeyCredential) error {
	query := `
		INSERT INTO passkey_credentials
			(id, reader_id, credential_id, public_key, attestation_type, transports, sign_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		cred.ID,
		cred.ReaderID,
		cred.CredentialID,
		cred.PublicKey,
		cred.AttestationType,
		cred.Transports,
		cred.SignCount,
		cred.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting passkey credential: %w", err)
	}
	return nil
}

// GetPasskeyCredentialsByReader returns all credentials registered by a reader.
func (s *SQLiteStore) GetPasskeyCredentialsByReader(ctx context.Context, readerID string) ([]*PasskeyCredential, error) {
	query := `
		SELECT id, reader_id, credential_id, public_key, attestation_type, transports, sign_count, created_at
		FROM passkey_credentials
		WHERE reader_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, readerID)
	if err != nil {
		return nil, fmt.Errorf("querying passkey credentials: %w", err)
	}
	defer rows.Close()

	var creds []*PasskeyCredential
	for rows.Next() {
		cred, err := scanPasskeyCredentialRow(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passkey credentials: %w", err)
	}

	return creds, nil
}

// GetPasskeyCredentialByCredentialID looks up a credential by the raw
// WebAuthn credential ID. Returns ErrNotFound if unknown.
func (s *SQLiteStore) GetPasskeyCredentialByCredentialID(ctx context.Context, credentialID []byte) (*PasskeyCredential, error) {
	query := `
		SELECT id, reader_id, credential_id, public_key, attestation_type, transports, sign_count, created_at
		FROM passkey_credentials
		WHERE credential_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, credentialID)
	if err != nil {
		return nil, fmt.Errorf("querying passkey credential: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying passkey credential: %w", err)
		}
		return nil, ErrNotFound
	}

	return scanPasskeyCredentialRow(rows)
}

// scanPasskeyCredentialRow scans a credential from a *sql.Rows cursor.
func scanPasskeyCredentialRow(rows *sql.Rows) (*PasskeyCredential, error) {
	var cred PasskeyCredential
	var createdAtStr string

	err := rows.Scan(
		&cred.ID,
		&cred.ReaderID,
		&cred.CredentialID,
		&cred.PublicKey,
		&cred.AttestationType,
		&cred.Transports,
		&cred.SignCount,
		&createdAtStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning passkey credential: %w", err)
	}

	cred.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &cred, nil
}

// UpdatePasskeyCredentialSignCount updates the authenticator sign counter.
func (s *SQLiteStore) UpdatePasskeyCredentialSignCount(ctx context.Context, id string, signCount uint32) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE passkey_credentials SET sign_count = ? WHERE id = ?`, signCount, id)
	if err != nil {
		return fmt.Errorf("updating sign count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePasskeyCredential removes a credential by ID.
func (s *SQLiteStore) DeletePasskeyCredential(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM passkey_credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting passkey credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
