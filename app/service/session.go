package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/password"
	"github.com/vibast-solutions/ms-go-inventory/app/token"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
	"github.com/vibast-solutions/ms-go-inventory/config"
)

type tokenIssuer interface {
	IssueAccess(user *entity.User) (string, error)
	IssueRefresh(user *entity.User) (string, error)
	VerifyAccess(tokenString string) (*token.AccessClaims, error)
	VerifyRefresh(tokenString string) (*token.RefreshClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Session is the result of a login or refresh.
type Session struct {
	User         *entity.User
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

type SessionService interface {
	Login(ctx context.Context, req *types.LoginRequest) (*Session, error)
	Refresh(ctx context.Context, req *types.RefreshTokenRequest) (*Session, error)
	Logout(ctx context.Context, userID uint64) error
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

type sessionService struct {
	users        userRepository
	tokens       tokenIssuer
	hasher       password.Hasher
	cfg          *config.Config
	verification *verification
}

func NewSessionService(
	users userRepository,
	tokens tokenIssuer,
	hasher password.Hasher,
	sender mailSender,
	cfg *config.Config,
	opts ...Option,
) SessionService {
	o := newOptions(opts)
	return &sessionService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		cfg:    cfg,
		verification: &verification{
			users:    users,
			cfg:      cfg,
			notifier: &notifier{sender: sender, run: o.asyncRunner},
			now:      o.now,
		},
	}
}

func (s *sessionService) Login(ctx context.Context, req *types.LoginRequest) (*Session, error) {
	user, err := s.users.FindByUsernameAndEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !user.IsVerified {
		if s.cfg.Tokens.ResendVerificationOnLogin {
			err := s.verification.issue(ctx, user)
			if err == nil {
				return nil, ErrVerificationResent
			}
			logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to re-issue signup code")
		}
		return nil, ErrUnverified
	}

	if !s.hasher.Compare(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	// overwrites any previous refresh token, ending older sessions
	if err := s.users.SetRefreshToken(ctx, user.ID, session.RefreshToken); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Refresh(ctx context.Context, req *types.RefreshTokenRequest) (*Session, error) {
	if req.RefreshToken == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.RefreshToken.Valid || user.RefreshToken.String != req.RefreshToken {
		return nil, ErrTokenReused
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, req.RefreshToken, session.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, ErrTokenReused
	}
	return session, nil
}

func (s *sessionService) Logout(ctx context.Context, userID uint64) error {
	return s.users.ClearRefreshToken(ctx, userID)
}

func (s *sessionService) Authenticate(ctx context.Context, accessToken string) (*entity.User, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			logrus.Debug("Expired access token presented")
		}
		return nil, ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *sessionService) issue(user *entity.User) (*Session, error) {
	accessToken, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, err
	}

	user.RefreshToken.String, user.RefreshToken.Valid = refreshToken, true
	return &Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    s.tokens.AccessTTL(),
		RefreshTTL:   s.tokens.RefreshTTL(),
	}, nil
}
