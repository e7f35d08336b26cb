package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/dto"
	"github.com/vibast-solutions/ms-go-inventory/app/media"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// Order matters: media validation errors arrive wrapped in service.ErrMediaUpload.
var errorMappings = []errorMapping{
	{media.ErrEmptyFile, http.StatusBadRequest, ""},
	{media.ErrFileTooLarge, http.StatusBadRequest, ""},
	{media.ErrUnsupportedType, http.StatusBadRequest, ""},
	{service.ErrMediaUpload, http.StatusInternalServerError, "image upload failed"},
	{service.ErrUserExists, http.StatusConflict, ""},
	{service.ErrUserNotFound, http.StatusNotFound, ""},
	{service.ErrProductNotFound, http.StatusNotFound, ""},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, ""},
	{service.ErrVerificationResent, http.StatusUnauthorized, ""},
	{service.ErrUnverified, http.StatusUnauthorized, ""},
	{service.ErrUnauthorized, http.StatusUnauthorized, ""},
	{service.ErrInvalidToken, http.StatusUnauthorized, ""},
	{service.ErrTokenReused, http.StatusUnauthorized, ""},
	{service.ErrForbidden, http.StatusForbidden, ""},
	{service.ErrSelfRoleChange, http.StatusForbidden, ""},
	{service.ErrInvalidOrExpired, http.StatusBadRequest, ""},
	{service.ErrPasswordMismatch, http.StatusBadRequest, ""},
	{service.ErrAlreadyVerified, http.StatusBadRequest, ""},
}

// statusFor maps a service error to a status and client-safe message.
// Unknown errors become 500 without detail.
func statusFor(err error) (int, string) {
	if errors.Is(err, service.ErrWeakPassword) {
		return http.StatusBadRequest, weakPasswordMessage(err)
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.message != "" {
				return m.status, m.message
			}
			return m.status, m.target.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// weakPasswordMessage keeps the policy detail after the sentinel prefix.
func weakPasswordMessage(err error) string {
	msg := err.Error()
	if _, detail, ok := strings.Cut(msg, service.ErrWeakPassword.Error()+": "); ok && detail != "" {
		return detail
	}
	return service.ErrWeakPassword.Error()
}

func respondError(ctx echo.Context, err error, action string, fields logrus.Fields) error {
	status, message := statusFor(err)
	entry := logrus.WithFields(fields)
	switch {
	case status >= http.StatusInternalServerError:
		entry.WithError(err).Error(action + " failed")
	default:
		entry.WithField("reason", message).Warn(action + " failed")
	}
	return dto.Error(ctx, status, message)
}

func badRequest(ctx echo.Context, err error, action string) error {
	logrus.WithError(err).Debug(action + " validation failed")
	return dto.Error(ctx, http.StatusBadRequest, err.Error())
}

func invalidBody(ctx echo.Context, err error, action string) error {
	logrus.WithError(err).Debug("Failed to bind " + strings.ToLower(action) + " request")
	return dto.Error(ctx, http.StatusBadRequest, "invalid request body")
}
