package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"hrkpi/internal/platform/crypto"
)

func newMFAService(t *testing.T) (*Service, *fakeStore, time.Time) {
	t.Helper()
	svc, store, _ := newTestService(t)
	sealer, err := crypto.New(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("crypto: %v", err)
	}
	svc.opts.Sealer = sealer
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }
	return svc, store, at
}

func code(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	c, err := totp.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return c
}

func TestMFAEnrollmentAndLogin(t *testing.T) {
	svc, store, at := newMFAService(t)
	ctx := context.Background()

	setup, err := svc.SetupMFA(ctx, "owner")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if setup.Secret == "" || !strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/") {
		t.Fatalf("unexpected setup %+v", setup)
	}
	if sealed := store.users["owner"].mfaSecret; len(sealed) == 0 || strings.Contains(string(sealed), setup.Secret) {
		t.Fatal("expected the secret to be stored sealed")
	}

	if err := svc.EnableMFA(ctx, "owner", "000000"); !errors.Is(err, ErrMFACodeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := svc.EnableMFA(ctx, "owner", code(t, setup.Secret, at)); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if _, err := svc.SetupMFA(ctx, "owner"); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("expected re-setup to be refused, got %v", err)
	}

	if _, err := svc.Login(ctx, "olive@example.com", "correct-horse", ""); !errors.Is(err, ErrMFARequired) {
		t.Fatalf("expected mfa required, got %v", err)
	}
	if _, err := svc.Login(ctx, "olive@example.com", "correct-horse", "123456"); !errors.Is(err, ErrMFAInvalid) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if _, err := svc.Login(ctx, "olive@example.com", "wrong", code(t, setup.Secret, at)); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected password to be checked first, got %v", err)
	}
	previous := code(t, setup.Secret, at.Add(-30*time.Second))
	if _, err := svc.Login(ctx, "olive@example.com", "correct-horse", previous); err != nil {
		t.Fatalf("expected previous window code to pass, got %v", err)
	}

	if err := svc.DisableMFA(ctx, "owner", code(t, setup.Secret, at)); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if store.users["owner"].mfaSecret != nil {
		t.Fatal("expected disable to forget the secret")
	}
	if _, err := svc.Login(ctx, "olive@example.com", "correct-horse", ""); err != nil {
		t.Fatalf("expected plain login after disable, got %v", err)
	}
}

func TestMFAPreconditions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SetupMFA(ctx, "owner"); !errors.Is(err, ErrMFAUnavailable) {
		t.Fatalf("expected unavailable without a key, got %v", err)
	}

	svc, _, _ = newMFAService(t)
	if err := svc.EnableMFA(ctx, "owner", "123456"); !errors.Is(err, ErrMFANotSetUp) {
		t.Fatalf("expected setup required, got %v", err)
	}
	if _, err := svc.SetupMFA(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected unknown user, got %v", err)
	}
}
