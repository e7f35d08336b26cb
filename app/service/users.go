package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/mailer"
	"github.com/vibast-solutions/ms-go-inventory/config"
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByUsernameAndEmail(ctx context.Context, username, email string) (*entity.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)
	FindConflicting(ctx context.Context, excludeID uint64, username, email string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByActiveOTP(ctx context.Context, otp string, now time.Time) (*entity.User, error)
	FindByActiveResetToken(ctx context.Context, token string, now time.Time) (*entity.User, error)
	FindAnyByRole(ctx context.Context, role entity.Role) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	SetSignupOTP(ctx context.Context, userID uint64, otp string, expiresAt time.Time) (bool, error)
	SetResetToken(ctx context.Context, userID uint64, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, userID uint64, currentHash, newHash string) (bool, error)
	ConsumeSignupOTP(ctx context.Context, userID uint64, otp string, now time.Time) (bool, error)
	ConsumeResetToken(ctx context.Context, userID uint64, token, passwordHash string, now time.Time) (bool, error)
	SetRefreshToken(ctx context.Context, userID uint64, token string) error
	RotateRefreshToken(ctx context.Context, userID uint64, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, userID uint64) error
	UpdateRole(ctx context.Context, userID uint64, role entity.Role) (bool, error)
}

// verification issues signup OTPs; shared by registration, resend and unverified login.
type verification struct {
	users    userRepository
	cfg      *config.Config
	notifier *notifier
	now      func() time.Time
}

// issue sets a fresh OTP on user, persists it and mails it.
func (v *verification) issue(ctx context.Context, user *entity.User) error {
	now := v.now()
	code, err := uniqueSignupOTP(ctx, v.users, v.cfg.Tokens.SignupOTPLength, now)
	if err != nil {
		return err
	}
	expiresAt := now.Add(v.cfg.Tokens.SignupOTPTTL)
	stored, err := v.users.SetSignupOTP(ctx, user.ID, code, expiresAt)
	if err != nil {
		return err
	}
	if !stored {
		return ErrAlreadyVerified
	}
	user.SetSignupOTP(code, expiresAt)
	v.mail(user, code)
	return nil
}

func (v *verification) mail(user *entity.User, code string) {
	to, name, ttl := user.Email, user.FullName, v.cfg.Tokens.SignupOTPTTL
	v.notifier.dispatch("verify-signup", user, func() (mailer.Message, error) {
		return mailer.VerifySignup(to, name, code, ttl)
	})
}
