package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/dto"
	"github.com/vibast-solutions/ms-go-inventory/app/ratelimit"
)

// RateLimit throttles by client IP within scope. A nil limiter disables it.
// Limiter errors let the request through.
func RateLimit(l *ratelimit.Limiter, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if l == nil {
			return next
		}
		return func(c echo.Context) error {
			ip := c.RealIP()
			result, err := l.Allow(c.Request().Context(), scope, ip)
			if err != nil {
				logrus.WithError(err).WithField("scope", scope).Warn("Rate limiter unavailable, allowing request")
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				logrus.WithFields(logrus.Fields{
					"scope": scope,
					"ip":    ip,
				}).Warn("Rate limit exceeded")
				return dto.Error(c, http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}
