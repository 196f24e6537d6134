package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rocketmoon/identity/internal/transport/http/handler"
	"github.com/rocketmoon/identity/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, resolver middleware.SessionResolver) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	auth := r.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/confirm/resend", authHandler.RequestConfirmation)
	auth.POST("/confirm/otp", authHandler.ConfirmOTP)
	auth.GET("/confirm/:token", authHandler.Confirm)

	// Logout must succeed for callers without a live session, so it runs
	// behind OptionalAuth instead of Auth.
	auth.DELETE("/logout", middleware.OptionalAuth(resolver), authHandler.Logout)
	auth.GET("/me", middleware.Auth(resolver), authHandler.Me)

	return r
}
