package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-inventory/app/middleware"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
	"github.com/vibast-solutions/ms-go-inventory/config"
)

func sessionCookie(cfg config.CookieConfig, name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func setSessionCookies(ctx echo.Context, cfg config.CookieConfig, session *service.Session) {
	ctx.SetCookie(sessionCookie(cfg, middleware.AccessTokenCookie, session.AccessToken, session.AccessTTL))
	ctx.SetCookie(sessionCookie(cfg, types.RefreshTokenCookie, session.RefreshToken, session.RefreshTTL))
}

func clearSessionCookies(ctx echo.Context, cfg config.CookieConfig) {
	for _, name := range []string{middleware.AccessTokenCookie, types.RefreshTokenCookie} {
		cookie := sessionCookie(cfg, name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		ctx.SetCookie(cookie)
	}
}
