package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"hrkpi/internal/domain/apperr"
)

const minPasswordLength = 8

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Sealer encrypts MFA secrets at rest. *crypto.Service satisfies it.
type Sealer interface {
	Configured() bool
	Seal(plain []byte) ([]byte, bool, error)
	Open(data []byte, encrypted bool) ([]byte, error)
}

type Options struct {
	Secret          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	ResetTTL        time.Duration
	BaseURL         string
	EmailFrom       string
	AllowSelfSignup bool
	// MFAIssuer labels the account in authenticator apps.
	MFAIssuer string
	Sealer    Sealer
}

type Service struct {
	store  StoreAPI
	mailer Mailer
	opts   Options
	now    func() time.Time
}

func NewService(store StoreAPI, mailer Mailer, opts Options) *Service {
	return &Service{store: store, mailer: mailer, opts: opts, now: time.Now}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Validation("email", "must be a valid email address")
	}
	return email, nil
}

func checkPasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user User) (Session, error) {
	now := s.now()
	access, err := GenerateToken(s.opts.Secret, Claims{UserID: user.ID, OrganizationID: user.OrganizationID, Role: user.Role}, s.opts.AccessTTL)
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := NewOpaqueToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpires := now.Add(s.opts.RefreshTTL)
	if err := s.store.StoreRefreshToken(ctx, user.ID, HashToken(refresh), refreshExpires); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}
	return Session{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(s.opts.AccessTTL),
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
		User:             user,
	}, nil
}

// Login checks the password of an active user. Unknown emails, invited users
// and wrong passwords all fail with the same error. Users with MFA enabled
// must also pass a current TOTP code.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	creds, err := s.store.FindCredentialsByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if creds.Status != StatusActive {
		return Session{}, ErrInvalidCredentials
	}
	if err := CheckPassword(creds.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if creds.MFAEnabled {
		if strings.TrimSpace(mfaCode) == "" {
			return Session{}, ErrMFARequired
		}
		if err := s.verifyTOTP(creds.MFASecret, mfaCode); err != nil {
			if errors.Is(err, ErrMFACodeMismatch) {
				return Session{}, ErrMFAInvalid
			}
			return Session{}, err
		}
	}
	session, err := s.issueSession(ctx, creds.User)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, creds.ID); err != nil {
		slog.Warn("update last_login failed", "userId", creds.ID, "err", err)
	}
	return session, nil
}

// Refresh rotates the refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Session{}, ErrInvalidRefreshToken
	}
	user, err := s.store.FindByRefreshToken(ctx, HashToken(refreshToken), s.now())
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Logout denylists the presented access token until it expires and drops the
// user's refresh token.
func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.TokenHash == "" {
		return apperr.Unauthorized("authentication required")
	}
	expires := user.ExpiresAt
	if expires.IsZero() {
		expires = s.now().Add(s.opts.AccessTTL)
	}
	if err := s.store.RevokeToken(ctx, user.TokenHash, user.UserID, expires); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := s.store.ClearRefreshToken(ctx, user.UserID); err != nil {
		slog.Warn("clear refresh token failed", "userId", user.UserID, "err", err)
	}
	return nil
}

func (s *Service) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	return s.store.IsTokenRevoked(ctx, tokenHash)
}

// PurgeExpired drops denylist entries and reset tokens that can no longer be
// used.
func (s *Service) PurgeExpired(ctx context.Context) (revoked, resets int64, err error) {
	now := s.now()
	revoked, err = s.store.PurgeRevokedTokens(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	resets, err = s.store.PurgeResetTokens(ctx, now)
	if err != nil {
		return revoked, 0, fmt.Errorf("purge reset tokens: %w", err)
	}
	return revoked, resets, nil
}

func (s *Service) link(path, token string) string {
	return strings.TrimRight(s.opts.BaseURL, "/") + path + "?token=" + token
}

func (s *Service) sendToken(ctx context.Context, userID, to, subject string, body func(token string) string) error {
	token, err := NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.store.SetResetToken(ctx, userID, HashToken(token), s.now().Add(s.opts.ResetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if err := s.mailer.Send(ctx, s.opts.EmailFrom, to, subject, body(token)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// RequestPasswordReset emails a reset link. Unknown addresses succeed silently
// so the endpoint cannot be used to enumerate accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	creds, err := s.store.FindCredentialsByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	body := func(token string) string {
		return "A password reset was requested for your account.\n\nOpen " + s.link("/reset-password", token) +
			" to choose a new password. The link expires in " + s.opts.ResetTTL.String() + "."
	}
	return s.sendToken(ctx, creds.ID, creds.Email, "Reset your password", body)
}

// ResetPassword consumes a reset or invitation token. Invited users become
// active.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrInvalidResetToken
	}
	if err := checkPasswordStrength(newPassword); err != nil {
		return User{}, err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.ConsumeResetToken(ctx, HashToken(token), hash, s.now())
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return User{}, ErrInvalidResetToken
		}
		return User{}, err
	}
	return user, nil
}

// InviteUser creates an invited member of the actor's organization and mails
// them a link to set their password.
func (s *Service) InviteUser(ctx context.Context, actor UserContext, in InviteInput) (User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, apperr.Validation("name", "is required")
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = RoleEmployee
	}
	if !ValidRole(role) {
		return User{}, ErrInvalidRole
	}
	if role == RoleOwner {
		return User{}, ErrOwnerInvite
	}

	user, err := s.store.CreateUser(ctx, NewUser{
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Email:          email,
		Role:           role,
		Status:         StatusInvited,
	})
	if err != nil {
		return User{}, err
	}
	body := func(token string) string {
		return "You have been invited to join your team's KPI workspace.\n\nOpen " + s.link("/accept-invite", token) +
			" to set your password. The link expires in " + s.opts.ResetTTL.String() + "."
	}
	if err := s.sendToken(ctx, user.ID, user.Email, "You're invited", body); err != nil {
		return User{}, err
	}
	return user, nil
}

// Register creates a new organization with the caller as its owner.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if !s.opts.AllowSelfSignup {
		return Session{}, ErrSignupDisabled
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Session{}, err
	}
	orgName := strings.TrimSpace(in.OrganizationName)
	if orgName == "" {
		return Session{}, apperr.Validation("organizationName", "is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Session{}, apperr.Validation("name", "is required")
	}
	if err := checkPasswordStrength(in.Password); err != nil {
		return Session{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	owner, err := s.store.CreateOrganizationWithOwner(ctx, orgName, NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleOwner,
		Status:       StatusActive,
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return Session{}, err
		}
		return Session{}, apperr.Transaction("register organization", err)
	}
	return s.issueSession(ctx, owner)
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.store.GetUser(ctx, userID)
}

// EnsureOwner creates an organization and an active owner account unless a
// user with that email already exists. It backs the startup seed.
func (s *Service) EnsureOwner(ctx context.Context, orgName, email, password string) (User, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, false, err
	}
	existing, err := s.store.FindCredentialsByEmail(ctx, email)
	if err == nil {
		return existing.User, false, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return User{}, false, err
	}
	if err := checkPasswordStrength(password); err != nil {
		return User{}, false, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, false, fmt.Errorf("hash password: %w", err)
	}
	orgName = strings.TrimSpace(orgName)
	if orgName == "" {
		orgName = "Default Organization"
	}
	owner, err := s.store.CreateOrganizationWithOwner(ctx, orgName, NewUser{
		Name:         "Owner",
		Email:        email,
		PasswordHash: hash,
		Role:         RoleOwner,
		Status:       StatusActive,
	})
	if err != nil {
		return User{}, false, err
	}
	return owner, true, nil
}
