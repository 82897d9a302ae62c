package auth

import "time"

const (
	StatusActive  = "active"
	StatusInvited = "invited"
)

// UserContext is the authenticated caller carried on the request context.
type UserContext struct {
	UserID         string
	OrganizationID string
	Role           string
	TokenHash      string
	ExpiresAt      time.Time
}

func (u UserContext) Admin() bool {
	return IsAdmin(u.Role)
}

type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	MFAEnabled     bool       `json:"mfaEnabled"`
}

type Credentials struct {
	User
	PasswordHash string
	// MFASecret is the sealed TOTP secret, nil until setup.
	MFASecret []byte
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

type NewUser struct {
	OrganizationID string
	Name           string
	Email          string
	PasswordHash   string
	Role           string
	Status         string
}

type Session struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	User             User      `json:"user"`
}

type RegisterInput struct {
	OrganizationName string
	Name             string
	Email            string
	Password         string
}

type InviteInput struct {
	Name  string
	Email string
	Role  string
}
