// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/hubauth/internal/services/account"
	"codeberg.org/oliverandrich/hubauth/internal/services/otp"
	"codeberg.org/oliverandrich/hubauth/internal/token"
)

// fail maps a service error onto the matching HTTP response. Anything
// unrecognized is an internal error and gets logged.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid credentials"})
	case errors.Is(err, account.ErrInvalidDestination):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid email/mobile format"})
	case errors.Is(err, account.ErrWeakPassword):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "password does not meet requirements"})
	case errors.Is(err, account.ErrUserExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "user already exists"})
	case errors.Is(err, account.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, otp.ErrNoLiveCode), errors.Is(err, otp.ErrCodeMismatch):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid or expired code"})
	case errors.Is(err, token.ErrTokenInvalid), errors.Is(err, token.ErrTokenExpired):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid or expired token"})
	default:
		slog.Error("handler_error", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
