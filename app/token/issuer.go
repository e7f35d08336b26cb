package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// AccessClaims carries the identity snapshot handed to downstream handlers.
type AccessClaims struct {
	UserID   uint64      `json:"id"`
	FullName string      `json:"fullName"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Timezone string      `json:"timezone"`
	Role     entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims deliberately carries nothing but the user id.
type RefreshClaims struct {
	UserID uint64 `json:"id"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	return &Issuer{cfg: i.cfg, now: now}
}

func (i *Issuer) AccessTTL() time.Duration {
	return i.cfg.AccessTTL
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.cfg.RefreshTTL
}

func (i *Issuer) IssueAccess(user *entity.User) (string, error) {
	now := i.now()
	claims := &AccessClaims{
		UserID:   user.ID,
		FullName: user.FullName,
		Username: user.Username,
		Email:    user.Email,
		Timezone: user.Timezone,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.AccessSecret))
}

// IssueRefresh mints a refresh token. The jti makes two tokens minted within the
// same second distinct, which rotation relies on.
func (i *Issuer) IssueRefresh(user *entity.User) (string, error) {
	now := i.now()
	claims := &RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.RefreshSecret))
}

func (i *Issuer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenString, i.cfg.AccessSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenString, i.cfg.RefreshSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) parse(tokenString, secret string, claims jwt.Claims) error {
	if tokenString == "" {
		return ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
