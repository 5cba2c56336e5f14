// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/oliverandrich/hubauth/internal/auth"
	"codeberg.org/oliverandrich/hubauth/internal/handlers"
	"codeberg.org/oliverandrich/hubauth/internal/middleware"
	"codeberg.org/oliverandrich/hubauth/internal/services/account"
	"codeberg.org/oliverandrich/hubauth/internal/ws"
)

func setupRoutes(e *echo.Echo, accounts *account.Service, resolver *auth.Resolver, gate *ws.Gate) {
	h := handlers.NewAuth(accounts)
	authed := middleware.RequireAuth(resolver)

	e.GET("/health", handlers.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/auth")
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout, authed)
	g.GET("/me", h.Me, authed)
	g.POST("/send-otp-login", h.SendLoginCode)
	g.POST("/otp-login", h.LoginWithCode)
	g.POST("/pre-register", h.PreRegister)
	g.POST("/verify-pre-register", h.VerifyPreRegister)
	g.POST("/register", h.Register)
	g.POST("/send-verify-email", h.SendVerifyEmail, authed)
	g.POST("/verify-email", h.VerifyEmail, authed)
	g.GET("/verify-email/:token", h.VerifyEmailToken)
	g.POST("/send-verify-mobile", h.SendVerifyMobile, authed)
	g.POST("/verify-mobile", h.VerifyMobile, authed)
	g.POST("/forget-password", h.ForgetPassword)
	g.POST("/reset-password-otp", h.ResetPasswordWithCode)
	g.POST("/reset-password-token", h.ResetPasswordWithToken)

	// Chat joins are gated by the same session check as the HTTP routes.
	e.GET("/ws/chat/:room", gate.Handle)
	e.GET("/ws/chat", gate.Handle)
}
