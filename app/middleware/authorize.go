package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/dto"
	"github.com/vibast-solutions/ms-go-inventory/app/entity"
)

// RequireRole must run after RequireAuth.
func RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return dto.Error(c, http.StatusUnauthorized, "unauthorized request")
			}
			if !slices.Contains(roles, user.Role) {
				logrus.WithFields(logrus.Fields{
					"user_id": user.ID,
					"role":    user.Role,
				}).Warn("Access denied: insufficient role")
				return dto.Error(c, http.StatusForbidden, "access denied")
			}
			return next(c)
		}
	}
}
