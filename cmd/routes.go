package cmd

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-inventory/app/controller"
	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/metrics"
	"github.com/vibast-solutions/ms-go-inventory/app/middleware"
	"github.com/vibast-solutions/ms-go-inventory/app/ratelimit"
)

type routeDeps struct {
	users    *controller.UserController
	products *controller.ProductController
	auth     *middleware.AuthMiddleware
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
}

func registerRoutes(e *echo.Echo, d routeDeps) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))

	limit := func(scope string) echo.MiddlewareFunc {
		return middleware.RateLimit(d.limiter, scope)
	}

	users := e.Group("/api/v1/users")
	users.POST("/register", d.users.Register)
	users.POST("/login", d.users.Login, limit("login"))
	users.POST("/refresh-token", d.users.RefreshToken, limit("refresh"))
	users.POST("/verify-signup", d.users.VerifySignup, limit("verify"))
	users.POST("/resend-otp", d.users.ResendOTP, limit("resend"))
	users.POST("/forget-password", d.users.ForgotPassword, limit("forgot"))
	users.POST("/reset-password/:token", d.users.ResetPassword, limit("reset"))

	usersProtected := users.Group("")
	usersProtected.Use(d.auth.RequireAuth)
	usersProtected.POST("/logout", d.users.Logout)
	usersProtected.PATCH("/change-password", d.users.ChangePassword)
	usersProtected.GET("/current-user", d.users.CurrentUser)
	usersProtected.PATCH("/update-account", d.users.UpdateAccount)
	usersProtected.PATCH("/update-avatar", d.users.UpdateAvatar)
	usersProtected.PATCH("/update-coverImage", d.users.UpdateCoverImage)
	usersProtected.PATCH("/make-admin/:id", d.users.UpdateRole, middleware.RequireRole(entity.RoleAdmin))

	products := e.Group("/api/v1/products")
	products.Use(d.auth.RequireAuth)
	products.POST("", d.products.Create)
	products.GET("", d.products.List)
	products.GET("/mine", d.products.ListMine)
	products.GET("/search", d.products.Search)
	products.GET("/:id", d.products.Get)
	products.PATCH("/:id", d.products.Update)
	products.DELETE("/:id", d.products.Delete)
}
