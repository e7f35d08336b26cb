package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserExists         = errors.New("user with this username or email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverified         = errors.New("account is not verified")
	ErrUnauthorized       = errors.New("unauthorized request")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrTokenReused        = errors.New("refresh token is expired or used")
	ErrInvalidOrExpired   = errors.New("token is invalid or has expired")
	ErrForbidden          = errors.New("you do not have permission to perform this action")
	ErrSelfRoleChange     = errors.New("you cannot change your own role")
	ErrPasswordMismatch   = errors.New("old password is incorrect")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrWeakPassword       = errors.New("password does not meet policy requirements")
	ErrProductNotFound    = errors.New("product not found")
	ErrMediaUpload        = errors.New("image upload failed")

	// ErrVerificationResent is ErrUnverified after a fresh code went out.
	ErrVerificationResent = fmt.Errorf("%w, a new verification code was sent", ErrUnverified)
)
