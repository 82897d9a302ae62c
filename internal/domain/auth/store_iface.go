package auth

import (
	"context"
	"time"
)

type StoreAPI interface {
	FindCredentialsByEmail(ctx context.Context, email string) (Credentials, error)
	GetUser(ctx context.Context, userID string) (User, error)
	UpdateLastLogin(ctx context.Context, userID string) error

	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expires time.Time) error
	FindByRefreshToken(ctx context.Context, tokenHash string, now time.Time) (User, error)
	ClearRefreshToken(ctx context.Context, userID string) error

	RevokeToken(ctx context.Context, tokenHash, userID string, expires time.Time) error
	IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error)
	PurgeRevokedTokens(ctx context.Context, before time.Time) (int64, error)

	SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error)
	PurgeResetTokens(ctx context.Context, before time.Time) (int64, error)

	SetMFASecret(ctx context.Context, userID string, sealed []byte) error
	GetMFA(ctx context.Context, userID string) (enabled bool, sealed []byte, err error)
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error

	CreateUser(ctx context.Context, in NewUser) (User, error)
	CreateOrganizationWithOwner(ctx context.Context, orgName string, owner NewUser) (User, error)
}
