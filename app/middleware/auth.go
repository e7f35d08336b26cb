package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/dto"
	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
)

const (
	AccessTokenCookie = "accessToken"
	ContextKeyUser    = "user"
)

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

type AuthMiddleware struct {
	sessions authenticator
}

func NewAuthMiddleware(sessions authenticator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// RequireAuth accepts the access token from the cookie first, then from a Bearer header.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accessToken := accessTokenFromRequest(c)
		if accessToken == "" {
			logrus.Debug("Missing access token")
			return dto.Error(c, http.StatusUnauthorized, "unauthorized request")
		}

		user, err := m.sessions.Authenticate(c.Request().Context(), accessToken)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				logrus.Debug("Invalid or expired access token")
				return dto.Error(c, http.StatusUnauthorized, "invalid access token")
			}
			logrus.WithError(err).Error("Access token authentication failed")
			return dto.Error(c, http.StatusInternalServerError, "internal server error")
		}

		c.Set(ContextKeyUser, user)
		return next(c)
	}
}

// CurrentUser returns the user loaded by RequireAuth, or nil outside an authenticated route.
func CurrentUser(c echo.Context) *entity.User {
	user, _ := c.Get(ContextKeyUser).(*entity.User)
	return user
}

func accessTokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}

	parts := strings.Fields(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
