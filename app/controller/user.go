package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/dto"
	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/metrics"
	"github.com/vibast-solutions/ms-go-inventory/app/middleware"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
	"github.com/vibast-solutions/ms-go-inventory/config"
)

type authEventRecorder interface {
	RecordAuthEvent(event string, err error)
}

type UserController struct {
	accounts service.AccountService
	sessions service.SessionService
	cookies  config.CookieConfig
	events   authEventRecorder
}

func NewUserController(
	accounts service.AccountService,
	sessions service.SessionService,
	cookies config.CookieConfig,
	events authEventRecorder,
) *UserController {
	return &UserController{
		accounts: accounts,
		sessions: sessions,
		cookies:  cookies,
		events:   events,
	}
}

func (c *UserController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Register")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Register")
	}

	logrus.WithField("username", req.Username).Info("Register request received")
	user, err := c.accounts.Register(ctx.Request().Context(), req)
	c.events.RecordAuthEvent(metrics.EventRegister, err)
	if err != nil {
		return respondError(ctx, err, "Register", logrus.Fields{"username": req.Username})
	}

	logrus.WithField("user_id", user.ID).Info("User registered")
	return dto.JSON(ctx, http.StatusCreated, user, "user registered successfully, check your email for the verification code")
}

func (c *UserController) Login(ctx echo.Context) error {
	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Login")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Login")
	}

	logrus.WithField("username", req.Username).Info("Login request received")
	session, err := c.sessions.Login(ctx.Request().Context(), req)
	c.events.RecordAuthEvent(metrics.EventLogin, err)
	if err != nil {
		return respondError(ctx, err, "Login", logrus.Fields{"username": req.Username})
	}

	setSessionCookies(ctx, c.cookies, session)
	logrus.WithField("user_id", session.User.ID).Info("Login successful")
	return dto.JSON(ctx, http.StatusOK, dto.SessionResponse{
		User:         session.User,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}, "user logged in successfully")
}

func (c *UserController) Logout(ctx echo.Context) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	err := c.sessions.Logout(ctx.Request().Context(), user.ID)
	c.events.RecordAuthEvent(metrics.EventLogout, err)
	if err != nil {
		return respondError(ctx, err, "Logout", logrus.Fields{"user_id": user.ID})
	}

	clearSessionCookies(ctx, c.cookies)
	logrus.WithField("user_id", user.ID).Info("Logout successful")
	return dto.JSON(ctx, http.StatusOK, nil, "user logged out successfully")
}

func (c *UserController) RefreshToken(ctx echo.Context) error {
	req, err := types.NewRefreshTokenRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Refresh token")
	}
	if err = req.Validate(); err != nil {
		c.events.RecordAuthEvent(metrics.EventRefresh, service.ErrUnauthorized)
		logrus.Debug("Refresh token missing")
		return dto.Error(ctx, http.StatusUnauthorized, service.ErrUnauthorized.Error())
	}

	session, err := c.sessions.Refresh(ctx.Request().Context(), req)
	c.events.RecordAuthEvent(metrics.EventRefresh, err)
	if err != nil {
		return respondError(ctx, err, "Refresh token", nil)
	}

	setSessionCookies(ctx, c.cookies, session)
	logrus.WithField("user_id", session.User.ID).Info("Access token refreshed")
	return dto.JSON(ctx, http.StatusOK, dto.SessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	}, "access token refreshed successfully")
}

func (c *UserController) VerifySignup(ctx echo.Context) error {
	req, err := types.NewVerifySignupRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Verify signup")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Verify signup")
	}

	user, err := c.accounts.VerifySignup(ctx.Request().Context(), req)
	c.events.RecordAuthEvent(metrics.EventVerifySignup, err)
	if err != nil {
		return respondError(ctx, err, "Verify signup", nil)
	}

	logrus.WithField("user_id", user.ID).Info("Signup verified")
	return dto.JSON(ctx, http.StatusOK, user, "user verified successfully")
}

func (c *UserController) ResendOTP(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Resend OTP")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Resend OTP")
	}

	if err = c.accounts.ResendSignupOTP(ctx.Request().Context(), req); err != nil {
		return respondError(ctx, err, "Resend OTP", logrus.Fields{"email": req.Email})
	}

	logrus.WithField("email", req.Email).Info("Signup OTP re-issued")
	return dto.JSON(ctx, http.StatusOK, nil, "verification code sent")
}

func (c *UserController) ForgotPassword(ctx echo.Context) error {
	req, err := types.NewEmailRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Forgot password")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Forgot password")
	}

	err = c.accounts.ForgotPassword(ctx.Request().Context(), req)
	c.events.RecordAuthEvent(metrics.EventForgotPassword, err)
	if err != nil {
		return respondError(ctx, err, "Forgot password", logrus.Fields{"email": req.Email})
	}

	logrus.WithField("email", req.Email).Info("Password reset link issued")
	return dto.JSON(ctx, http.StatusOK, nil, "password reset link sent to your email")
}

func (c *UserController) ResetPassword(ctx echo.Context) error {
	req, err := types.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Reset password")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Reset password")
	}

	err = c.accounts.ResetPassword(ctx.Request().Context(), req)
	c.events.RecordAuthEvent(metrics.EventResetPassword, err)
	if err != nil {
		return respondError(ctx, err, "Reset password", nil)
	}

	logrus.Info("Password reset successful")
	return dto.JSON(ctx, http.StatusOK, nil, "password reset successfully")
}

func (c *UserController) ChangePassword(ctx echo.Context) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	req, err := types.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Change password")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Change password")
	}

	err = c.accounts.ChangePassword(ctx.Request().Context(), user.ID, req)
	c.events.RecordAuthEvent(metrics.EventChangePassword, err)
	if err != nil {
		return respondError(ctx, err, "Change password", logrus.Fields{"user_id": user.ID})
	}

	clearSessionCookies(ctx, c.cookies)
	logrus.WithField("user_id", user.ID).Info("Password changed")
	return dto.JSON(ctx, http.StatusOK, nil, "password changed successfully")
}

func (c *UserController) CurrentUser(ctx echo.Context) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}
	return dto.JSON(ctx, http.StatusOK, user, "current user fetched successfully")
}

func (c *UserController) UpdateAccount(ctx echo.Context) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	req, err := types.NewUpdateAccountRequestFromContext(ctx)
	if err != nil {
		return invalidBody(ctx, err, "Update account")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Update account")
	}

	updated, err := c.accounts.UpdateAccount(ctx.Request().Context(), user.ID, req)
	if err != nil {
		return respondError(ctx, err, "Update account", logrus.Fields{"user_id": user.ID})
	}

	logrus.WithField("user_id", user.ID).Info("Account details updated")
	return dto.JSON(ctx, http.StatusOK, updated, "account details updated successfully")
}

func (c *UserController) UpdateAvatar(ctx echo.Context) error {
	return c.updateImage(ctx, "avatar", c.accounts.UpdateAvatar)
}

func (c *UserController) UpdateCoverImage(ctx echo.Context) error {
	return c.updateImage(ctx, "coverImage", c.accounts.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, userID uint64, req *types.UpdateImageRequest) (*entity.User, error)

func (c *UserController) updateImage(ctx echo.Context, field string, update imageUpdater) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	req, err := types.NewUpdateImageRequestFromContext(ctx, field)
	if err != nil {
		return badRequest(ctx, err, "Update "+field)
	}

	updated, err := update(ctx.Request().Context(), user.ID, req)
	if err != nil {
		return respondError(ctx, err, "Update "+field, logrus.Fields{"user_id": user.ID})
	}

	logrus.WithField("user_id", user.ID).Info(field + " updated")
	return dto.JSON(ctx, http.StatusOK, updated, field+" updated successfully")
}

func (c *UserController) UpdateRole(ctx echo.Context) error {
	actor := middleware.CurrentUser(ctx)
	if actor == nil {
		return dto.Error(ctx, http.StatusUnauthorized, "unauthorized request")
	}

	req, err := types.NewUpdateRoleRequestFromContext(ctx)
	if err != nil {
		return badRequest(ctx, err, "Update role")
	}
	if err = req.Validate(); err != nil {
		return badRequest(ctx, err, "Update role")
	}

	updated, err := c.accounts.UpdateRole(ctx.Request().Context(), actor, req)
	if err != nil {
		return respondError(ctx, err, "Update role", logrus.Fields{
			"actor_id":  actor.ID,
			"target_id": req.UserID,
		})
	}

	logrus.WithFields(logrus.Fields{
		"actor_id":  actor.ID,
		"target_id": updated.ID,
		"role":      updated.Role,
	}).Info("User role updated")
	return dto.JSON(ctx, http.StatusOK, updated, "user role updated successfully")
}
