package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/mailer"
	"github.com/vibast-solutions/ms-go-inventory/app/media"
	"github.com/vibast-solutions/ms-go-inventory/app/password"
	"github.com/vibast-solutions/ms-go-inventory/app/repository"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
	"github.com/vibast-solutions/ms-go-inventory/config"
)

type mediaStore interface {
	Upload(ctx context.Context, file media.File) (media.Asset, error)
	Delete(ctx context.Context, publicID string) error
}

type AccountService interface {
	Register(ctx context.Context, req *types.RegisterRequest) (*entity.User, error)
	VerifySignup(ctx context.Context, req *types.VerifySignupRequest) (*entity.User, error)
	ResendSignupOTP(ctx context.Context, req *types.EmailRequest) error
	ForgotPassword(ctx context.Context, req *types.EmailRequest) error
	ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, userID uint64, req *types.ChangePasswordRequest) error
	CurrentUser(ctx context.Context, userID uint64) (*entity.User, error)
	UpdateAccount(ctx context.Context, userID uint64, req *types.UpdateAccountRequest) (*entity.User, error)
	UpdateAvatar(ctx context.Context, userID uint64, req *types.UpdateImageRequest) (*entity.User, error)
	UpdateCoverImage(ctx context.Context, userID uint64, req *types.UpdateImageRequest) (*entity.User, error)
	UpdateRole(ctx context.Context, actor *entity.User, req *types.UpdateRoleRequest) (*entity.User, error)
	SeedAdmin(ctx context.Context) (*entity.User, bool, error)
}

type accountService struct {
	users        userRepository
	hasher       password.Hasher
	media        mediaStore
	cfg          *config.Config
	opts         options
	notifier     *notifier
	verification *verification
}

func NewAccountService(
	users userRepository,
	hasher password.Hasher,
	store mediaStore,
	sender mailSender,
	cfg *config.Config,
	opts ...Option,
) AccountService {
	o := newOptions(opts)
	n := &notifier{sender: sender, run: o.asyncRunner}
	return &accountService{
		users:    users,
		hasher:   hasher,
		media:    store,
		cfg:      cfg,
		opts:     o,
		notifier: n,
		verification: &verification{
			users:    users,
			cfg:      cfg,
			notifier: n,
			now:      o.now,
		},
	}
}

func (s *accountService) Register(ctx context.Context, req *types.RegisterRequest) (*entity.User, error) {
	if err := s.cfg.Password.Policy.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	existing, err := s.users.FindByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	avatar, err := s.upload(ctx, *req.Avatar)
	if err != nil {
		return nil, err
	}
	uploaded := []string{avatar.PublicID}

	var cover media.Asset
	if req.CoverImage != nil {
		if cover, err = s.upload(ctx, *req.CoverImage); err != nil {
			s.discard(uploaded...)
			return nil, err
		}
		uploaded = append(uploaded, cover.PublicID)
	}

	now := s.opts.now()
	user := &entity.User{
		FullName:           req.FullName,
		Username:           req.Username,
		Email:              req.Email,
		AvatarURL:          avatar.URL,
		AvatarPublicID:     avatar.PublicID,
		CoverImageURL:      cover.URL,
		CoverImagePublicID: cover.PublicID,
		Timezone:           req.Timezone,
		Role:               entity.RoleUser,
		IsVerified:         false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := user.SetPassword(s.hasher, req.Password); err != nil {
		s.discard(uploaded...)
		return nil, err
	}

	code, err := uniqueSignupOTP(ctx, s.users, s.cfg.Tokens.SignupOTPLength, now)
	if err != nil {
		s.discard(uploaded...)
		return nil, err
	}
	user.SetSignupOTP(code, now.Add(s.cfg.Tokens.SignupOTPTTL))

	if err := s.users.Create(ctx, user); err != nil {
		s.discard(uploaded...)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.verification.mail(user, code)
	return user, nil
}

func (s *accountService) VerifySignup(ctx context.Context, req *types.VerifySignupRequest) (*entity.User, error) {
	now := s.opts.now()
	user, err := s.users.FindByActiveOTP(ctx, req.OTP, now)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidOrExpired
	}

	consumed, err := s.users.ConsumeSignupOTP(ctx, user.ID, req.OTP, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidOrExpired
	}

	user.IsVerified = true
	user.ClearSignupOTP()

	to, name, link := user.Email, user.FullName, s.cfg.AppBaseURL+"/dashboard"
	s.notifier.dispatch("welcome", user, func() (mailer.Message, error) {
		return mailer.Welcome(to, name, link)
	})
	return user, nil
}

func (s *accountService) ResendSignupOTP(ctx context.Context, req *types.EmailRequest) error {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	return s.verification.issue(ctx, user)
}

func (s *accountService) ForgotPassword(ctx context.Context, req *types.EmailRequest) error {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	resetToken, err := GenerateResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.opts.now().Add(s.cfg.Tokens.ResetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, resetToken, expiresAt); err != nil {
		return err
	}
	user.SetResetToken(resetToken, expiresAt)

	to, name, link := user.Email, user.FullName, s.cfg.AppBaseURL+"/reset-password/"+resetToken
	s.notifier.dispatch("reset-password", user, func() (mailer.Message, error) {
		return mailer.ResetPassword(to, name, link, resetToken)
	})
	return nil
}

// ResetPassword consumes the reset token and revokes the stored refresh token in one update.
func (s *accountService) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error {
	if err := s.cfg.Password.Policy.Validate(req.Password); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	now := s.opts.now()
	user, err := s.users.FindByActiveResetToken(ctx, req.Token, now)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidOrExpired
	}

	if err := user.SetPassword(s.hasher, req.Password); err != nil {
		return err
	}

	consumed, err := s.users.ConsumeResetToken(ctx, user.ID, req.Token, user.PasswordHash, now)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidOrExpired
	}
	return nil
}

func (s *accountService) ChangePassword(ctx context.Context, userID uint64, req *types.ChangePasswordRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if !s.hasher.Compare(req.OldPassword, user.PasswordHash) {
		return ErrPasswordMismatch
	}
	if err := s.cfg.Password.Policy.Validate(req.NewPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	currentHash := user.PasswordHash
	if err := user.SetPassword(s.hasher, req.NewPassword); err != nil {
		return err
	}
	changed, err := s.users.UpdatePassword(ctx, user.ID, currentHash, user.PasswordHash)
	if err != nil {
		return err
	}
	if !changed {
		// a concurrent reset or change replaced the hash
		return ErrPasswordMismatch
	}
	return nil
}

func (s *accountService) CurrentUser(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, userID uint64, req *types.UpdateAccountRequest) (*entity.User, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	identityChanged := false
	if req.Username != nil && *req.Username != user.Username {
		user.Username = *req.Username
		identityChanged = true
	}
	if req.Email != nil && *req.Email != user.Email {
		user.Email = *req.Email
		identityChanged = true
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Timezone != nil {
		user.Timezone = *req.Timezone
	}

	if identityChanged {
		other, err := s.users.FindConflicting(ctx, user.ID, user.Username, user.Email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, ErrUserExists
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

func (s *accountService) UpdateAvatar(ctx context.Context, userID uint64, req *types.UpdateImageRequest) (*entity.User, error) {
	return s.replaceImage(ctx, userID, req, func(u *entity.User) (*string, *string) {
		return &u.AvatarURL, &u.AvatarPublicID
	})
}

func (s *accountService) UpdateCoverImage(ctx context.Context, userID uint64, req *types.UpdateImageRequest) (*entity.User, error) {
	return s.replaceImage(ctx, userID, req, func(u *entity.User) (*string, *string) {
		return &u.CoverImageURL, &u.CoverImagePublicID
	})
}

// replaceImage uploads the new asset, persists it and only then drops the old one.
func (s *accountService) replaceImage(
	ctx context.Context,
	userID uint64,
	req *types.UpdateImageRequest,
	fields func(*entity.User) (url *string, publicID *string),
) (*entity.User, error) {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	asset, err := s.upload(ctx, *req.File)
	if err != nil {
		return nil, err
	}

	url, publicID := fields(user)
	previous := *publicID
	*url, *publicID = asset.URL, asset.PublicID

	if err := s.users.Update(ctx, user); err != nil {
		s.discard(asset.PublicID)
		return nil, err
	}

	s.discard(previous)
	return user, nil
}

func (s *accountService) UpdateRole(ctx context.Context, actor *entity.User, req *types.UpdateRoleRequest) (*entity.User, error) {
	if actor.ID == req.UserID {
		return nil, ErrSelfRoleChange
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	target, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	if _, err := s.users.UpdateRole(ctx, target.ID, req.Role); err != nil {
		return nil, err
	}
	target.Role = req.Role
	return target, nil
}

// SeedAdmin creates the configured admin account unless some ADMIN already exists.
func (s *accountService) SeedAdmin(ctx context.Context) (*entity.User, bool, error) {
	existing, err := s.users.FindAnyByRole(ctx, entity.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	admin := s.cfg.Admin
	if admin.Password == "" {
		return nil, false, errors.New("ADMIN_PASSWORD is required to seed the admin account")
	}

	now := s.opts.now()
	user := &entity.User{
		FullName:   admin.FullName,
		Username:   strings.ToLower(strings.TrimSpace(admin.Username)),
		Email:      strings.ToLower(strings.TrimSpace(admin.Email)),
		Timezone:   admin.Timezone,
		Role:       entity.RoleAdmin,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := user.SetPassword(s.hasher, admin.Password); err != nil {
		return nil, false, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, false, ErrUserExists
		}
		return nil, false, err
	}
	return user, true, nil
}

func (s *accountService) upload(ctx context.Context, file media.File) (media.Asset, error) {
	asset, err := s.media.Upload(ctx, file)
	if err != nil {
		logrus.WithError(err).WithField("file", file.Name).Warn("Media upload failed")
		return media.Asset{}, fmt.Errorf("%w: %w", ErrMediaUpload, err)
	}
	return asset, nil
}

// discard deletes assets that are no longer referenced. Failures are logged, not returned.
func (s *accountService) discard(publicIDs ...string) {
	discardAssets(s.media, publicIDs...)
}

func discardAssets(store mediaStore, publicIDs ...string) {
	for _, id := range publicIDs {
		if id == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		if err := store.Delete(ctx, id); err != nil {
			logrus.WithError(err).WithField("public_id", id).Error("Failed to delete media asset")
		}
		cancel()
	}
}
