package entity

import (
	"database/sql"
	"errors"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// PasswordHasher is the single hashing entry point for user passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// User is serialized straight into API responses, so every credential field is hidden.
type User struct {
	ID                      uint64         `json:"id"`
	FullName                string         `json:"fullName"`
	Username                string         `json:"username"`
	Email                   string         `json:"email"`
	PasswordHash            string         `json:"-"`
	AvatarURL               string         `json:"avatar"`
	AvatarPublicID          string         `json:"-"`
	CoverImageURL           string         `json:"coverImage"`
	CoverImagePublicID      string         `json:"-"`
	Timezone                string         `json:"timezone"`
	Role                    Role           `json:"role"`
	RefreshToken            sql.NullString `json:"-"`
	IsVerified              bool           `json:"isVerified"`
	OTPSignup               sql.NullString `json:"-"`
	OTPSignupExpiresAt      sql.NullTime   `json:"-"`
	ForgetPasswordToken     sql.NullString `json:"-"`
	ForgetPasswordExpiresAt sql.NullTime   `json:"-"`
	CreatedAt               time.Time      `json:"createdAt"`
	UpdatedAt               time.Time      `json:"updatedAt"`
}

// SetPassword rehashes plaintext and replaces PasswordHash. Every path that changes a
// password goes through here; nothing assigns PasswordHash directly.
func (u *User) SetPassword(hasher PasswordHasher, plaintext string) error {
	if plaintext == "" {
		return errors.New("password must not be empty")
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) SetSignupOTP(code string, expiresAt time.Time) {
	u.OTPSignup = sql.NullString{String: code, Valid: true}
	u.OTPSignupExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}
}

func (u *User) ClearSignupOTP() {
	u.OTPSignup = sql.NullString{}
	u.OTPSignupExpiresAt = sql.NullTime{}
}

func (u *User) SetResetToken(token string, expiresAt time.Time) {
	u.ForgetPasswordToken = sql.NullString{String: token, Valid: true}
	u.ForgetPasswordExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}
}

func (u *User) ClearResetToken() {
	u.ForgetPasswordToken = sql.NullString{}
	u.ForgetPasswordExpiresAt = sql.NullTime{}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
