package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	defaultMFAIssuer = "HR KPI"
	totpPeriod       = 30
)

func (s *Service) mfaAvailable() bool {
	return s.opts.Sealer != nil && s.opts.Sealer.Configured()
}

func (s *Service) issuer() string {
	if s.opts.MFAIssuer != "" {
		return s.opts.MFAIssuer
	}
	return defaultMFAIssuer
}

// SetupMFA generates a new TOTP secret for the caller. MFA stays off until
// EnableMFA confirms a code from the authenticator.
func (s *Service) SetupMFA(ctx context.Context, userID string) (MFASetup, error) {
	if !s.mfaAvailable() {
		return MFASetup{}, ErrMFAUnavailable
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return MFASetup{}, err
	}
	if user.MFAEnabled {
		return MFASetup{}, ErrMFAAlreadyEnabled
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer(),
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return MFASetup{}, fmt.Errorf("generate mfa secret: %w", err)
	}
	sealed, _, err := s.opts.Sealer.Seal([]byte(key.Secret()))
	if err != nil {
		return MFASetup{}, fmt.Errorf("seal mfa secret: %w", err)
	}
	if err := s.store.SetMFASecret(ctx, userID, sealed); err != nil {
		return MFASetup{}, fmt.Errorf("store mfa secret: %w", err)
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, userID, code string) error {
	return s.confirmMFA(ctx, userID, code, true)
}

// DisableMFA requires a current code so a stolen session alone cannot turn
// MFA off.
func (s *Service) DisableMFA(ctx context.Context, userID, code string) error {
	return s.confirmMFA(ctx, userID, code, false)
}

func (s *Service) confirmMFA(ctx context.Context, userID, code string, enable bool) error {
	if !s.mfaAvailable() {
		return ErrMFAUnavailable
	}
	enabled, sealed, err := s.store.GetMFA(ctx, userID)
	if err != nil {
		return err
	}
	if len(sealed) == 0 {
		return ErrMFANotSetUp
	}
	if enable && enabled {
		return ErrMFAAlreadyEnabled
	}
	if err := s.verifyTOTP(sealed, code); err != nil {
		return err
	}
	return s.store.SetMFAEnabled(ctx, userID, enable)
}

// verifyTOTP accepts the current code and its immediate neighbours.
func (s *Service) verifyTOTP(sealed []byte, code string) error {
	if len(sealed) == 0 {
		return ErrMFANotSetUp
	}
	if !s.mfaAvailable() {
		return ErrMFAUnavailable
	}
	secret, err := s.opts.Sealer.Open(sealed, true)
	if err != nil {
		return fmt.Errorf("open mfa secret: %w", err)
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), string(secret), s.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrMFACodeMismatch
	}
	return nil
}
