package types

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/media"
)

const RefreshTokenCookie = "refreshToken"

type RegisterRequest struct {
	FullName   string      `form:"fullName" validate:"required,max=100"`
	Username   string      `form:"username" validate:"required,min=3,max=30,username_format"`
	Email      string      `form:"email" validate:"required,email,max=255"`
	Password   string      `form:"password" validate:"required,max=72"`
	Timezone   string      `form:"timezone" validate:"required,max=64"`
	Avatar     *media.File `form:"-" validate:"-"`
	CoverImage *media.File `form:"-" validate:"-"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	var body RegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	var err error
	if body.Avatar, err = optionalFormFile(ctx, "avatar"); err != nil {
		return nil, err
	}
	if body.CoverImage, err = optionalFormFile(ctx, "coverImage"); err != nil {
		return nil, err
	}

	body.FullName = strings.TrimSpace(body.FullName)
	body.Username = normalizeIdentifier(body.Username)
	body.Email = normalizeIdentifier(body.Email)
	body.Timezone = strings.TrimSpace(body.Timezone)

	return &body, nil
}

func (r *RegisterRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.Avatar == nil {
		return errors.New("avatar is required")
	}
	return nil
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Username = normalizeIdentifier(body.Username)
	body.Email = normalizeIdentifier(body.Email)

	return &body, nil
}

func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// NewRefreshTokenRequestFromContext prefers the refreshToken cookie over the body field.
func NewRefreshTokenRequestFromContext(ctx echo.Context) (*RefreshTokenRequest, error) {
	var body RefreshTokenRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	if cookie, err := ctx.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		body.RefreshToken = cookie.Value
	}
	body.RefreshToken = strings.TrimSpace(body.RefreshToken)

	return &body, nil
}

func (r *RefreshTokenRequest) Validate() error {
	if r.RefreshToken == "" {
		return errors.New("refresh token is required")
	}
	return nil
}

type VerifySignupRequest struct {
	OTP string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

func NewVerifySignupRequestFromContext(ctx echo.Context) (*VerifySignupRequest, error) {
	var body VerifySignupRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.OTP = strings.TrimSpace(body.OTP)

	return &body, nil
}

func (r *VerifySignupRequest) Validate() error {
	return validateStruct(r)
}

// EmailRequest carries a single email address (resend OTP, forgot password).
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func NewEmailRequestFromContext(ctx echo.Context) (*EmailRequest, error) {
	var body EmailRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Email = normalizeIdentifier(body.Email)

	return &body, nil
}

func (r *EmailRequest) Validate() error {
	return validateStruct(r)
}

type ResetPasswordRequest struct {
	Token           string `param:"token" json:"-" validate:"required,hexadecimal,len=64"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Token = strings.TrimSpace(ctx.Param("token"))

	return &body, nil
}

func (r *ResetPasswordRequest) Validate() error {
	return validateStruct(r)
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func NewChangePasswordRequestFromContext(ctx echo.Context) (*ChangePasswordRequest, error) {
	var body ChangePasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ChangePasswordRequest) Validate() error {
	return validateStruct(r)
}

// UpdateAccountRequest is partial; nil fields stay unchanged.
type UpdateAccountRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,min=1,max=100"`
	Username *string `json:"username" validate:"omitempty,min=3,max=30,username_format"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Timezone *string `json:"timezone" validate:"omitempty,min=1,max=64"`
}

func NewUpdateAccountRequestFromContext(ctx echo.Context) (*UpdateAccountRequest, error) {
	var body UpdateAccountRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	trim(body.FullName, strings.TrimSpace)
	trim(body.Username, normalizeIdentifier)
	trim(body.Email, normalizeIdentifier)
	trim(body.Timezone, strings.TrimSpace)

	return &body, nil
}

func (r *UpdateAccountRequest) Validate() error {
	if r.FullName == nil && r.Username == nil && r.Email == nil && r.Timezone == nil {
		return errors.New("at least one field is required")
	}
	for _, field := range []*string{r.FullName, r.Username, r.Email, r.Timezone} {
		if field != nil && *field == "" {
			return errors.New("fields must not be blank")
		}
	}
	return validateStruct(r)
}

type UpdateImageRequest struct {
	File *media.File
}

func NewUpdateImageRequestFromContext(ctx echo.Context, field string) (*UpdateImageRequest, error) {
	file, err := optionalFormFile(ctx, field)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errors.New(field + " file is required")
	}

	return &UpdateImageRequest{File: file}, nil
}

type UpdateRoleRequest struct {
	UserID uint64      `json:"-"`
	Role   entity.Role `json:"role"`
}

// NewUpdateRoleRequestFromContext defaults the role to ADMIN when the body omits it.
func NewUpdateRoleRequestFromContext(ctx echo.Context) (*UpdateRoleRequest, error) {
	var body UpdateRoleRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid user id")
	}
	body.UserID = id

	body.Role = entity.Role(strings.ToUpper(strings.TrimSpace(string(body.Role))))
	if body.Role == "" {
		body.Role = entity.RoleAdmin
	}

	return &body, nil
}

func (r *UpdateRoleRequest) Validate() error {
	if r.UserID == 0 {
		return errors.New("invalid user id")
	}
	if !r.Role.Valid() {
		return errors.New("role must be one of: USER, ADMIN")
	}
	return nil
}

func optionalFormFile(ctx echo.Context, field string) (*media.File, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	file := media.FromFileHeader(fh)
	return &file, nil
}

func trim(s *string, fn func(string) string) {
	if s != nil {
		*s = fn(*s)
	}
}
