package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/domain/apperr"
	"hrkpi/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const userColumns = `id, organization_id, name, email, organization_role, status, last_login, created_at, mfa_enabled`

func scanUser(row pgx.Row, extra ...any) (User, error) {
	var u User
	dest := append([]any{&u.ID, &u.OrganizationID, &u.Name, &u.Email, &u.Role, &u.Status, &u.LastLogin, &u.CreatedAt, &u.MFAEnabled}, extra...)
	err := row.Scan(dest...)
	return u, err
}

func (s *Store) FindCredentialsByEmail(ctx context.Context, email string) (Credentials, error) {
	var out Credentials
	user, err := scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`, password_hash, mfa_secret_enc
    FROM users
    WHERE lower(email) = lower($1)
  `, email), &out.PasswordHash, &out.MFASecret)
	if err != nil {
		return Credentials{}, apperr.FromDB(err, ErrUserNotFound.Message)
	}
	out.User = user
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
	if err != nil {
		return User{}, apperr.FromDB(err, ErrUserNotFound.Message)
	}
	return user, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET refresh_token_hash = $1, refresh_token_expires_at = $2 WHERE id = $3
  `, tokenHash, expires, userID)
	return err
}

func (s *Store) FindByRefreshToken(ctx context.Context, tokenHash string, now time.Time) (User, error) {
	user, err := scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE refresh_token_hash = $1 AND refresh_token_expires_at > $2 AND status = 'active'
  `, tokenHash, now))
	if err != nil {
		return User{}, apperr.FromDB(err, ErrInvalidRefreshToken.Message)
	}
	return user, nil
}

func (s *Store) ClearRefreshToken(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL WHERE id = $1
  `, userID)
	return err
}

func (s *Store) RevokeToken(ctx context.Context, tokenHash, userID string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO revoked_tokens (token_hash, user_id, expires_at)
    VALUES ($1, $2, $3)
    ON CONFLICT (token_hash) DO NOTHING
  `, tokenHash, userID, expires)
	return err
}

func (s *Store) IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var revoked bool
	if err := s.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1)", tokenHash).Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

func (s *Store) PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM revoked_tokens WHERE expires_at <= $1", before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetMFASecret stores a fresh sealed secret and leaves MFA disabled until
// the first code is confirmed.
func (s *Store) SetMFASecret(ctx context.Context, userID string, sealed []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET mfa_secret_enc = $1, mfa_enabled = false WHERE id = $2
  `, sealed, userID)
	return err
}

func (s *Store) GetMFA(ctx context.Context, userID string) (enabled bool, sealed []byte, err error) {
	err = s.DB.QueryRow(ctx, "SELECT mfa_enabled, mfa_secret_enc FROM users WHERE id = $1", userID).Scan(&enabled, &sealed)
	if err != nil {
		return false, nil, apperr.FromDB(err, ErrUserNotFound.Message)
	}
	return enabled, sealed, nil
}

// SetMFAEnabled turns MFA on, or off and forgets the secret.
func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users
    SET mfa_enabled = $1,
        mfa_secret_enc = CASE WHEN $1 THEN mfa_secret_enc ELSE NULL END
    WHERE id = $2
  `, enabled, userID)
	return err
}

func (s *Store) SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET reset_token_hash = $1, reset_token_expires_at = $2 WHERE id = $3
  `, tokenHash, expires, userID)
	return err
}

// ConsumeResetToken sets the new password, activates invited users and
// clears every outstanding token of the user in one statement.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error) {
	user, err := scanUser(s.DB.QueryRow(ctx, `
    UPDATE users
    SET password_hash = $1,
        status = 'active',
        reset_token_hash = NULL,
        reset_token_expires_at = NULL,
        refresh_token_hash = NULL,
        refresh_token_expires_at = NULL
    WHERE reset_token_hash = $2 AND reset_token_expires_at > $3
    RETURNING `+userColumns, passwordHash, tokenHash, now))
	if err != nil {
		return User{}, apperr.FromDB(err, "invalid or expired token")
	}
	return user, nil
}

func (s *Store) PurgeResetTokens(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
    WHERE reset_token_hash IS NOT NULL AND reset_token_expires_at <= $1
  `, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func insertUser(ctx context.Context, q querier.Querier, in NewUser) (User, error) {
	user, err := scanUser(q.QueryRow(ctx, `
    INSERT INTO users (organization_id, name, email, password_hash, organization_role, status)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING `+userColumns,
		in.OrganizationID, in.Name, in.Email, in.PasswordHash, in.Role, in.Status))
	if err != nil {
		return User{}, apperr.FromDB(err, ErrUserNotFound.Message)
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, in NewUser) (User, error) {
	return insertUser(ctx, s.DB, in)
}

func (s *Store) CreateOrganizationWithOwner(ctx context.Context, orgName string, owner NewUser) (User, error) {
	var out User
	err := querier.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "INSERT INTO organizations (name) VALUES ($1) RETURNING id", orgName).Scan(&owner.OrganizationID); err != nil {
			return err
		}
		user, err := insertUser(ctx, tx, owner)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "UPDATE organizations SET owner_id = $1 WHERE id = $2", user.ID, user.OrganizationID); err != nil {
			return err
		}
		out = user
		return nil
	})
	return out, err
}
