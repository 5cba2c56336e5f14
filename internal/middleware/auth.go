// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware contains the HTTP access gate. It maps resolver
// verdicts to transport responses; rejection details never reach clients.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/hubauth/internal/auth"
	"codeberg.org/oliverandrich/hubauth/internal/metrics"
)

// RequireAuth resolves the Authorization header and attaches the identity
// to the request context, or short-circuits with 403 before the handler
// runs. A missing header is rejected the same way as an invalid one; store
// outages surface as 503 instead so they are never mistaken for logouts.
func RequireAuth(resolver *auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)

			identity, err := resolver.Authenticate(c.Request().Context(), header)
			if err != nil {
				return rejectHTTP(c, err)
			}

			metrics.AuthChecks.WithLabelValues(metrics.OutcomeOK).Inc()
			attachIdentity(c, identity)
			return next(c)
		}
	}
}

// OptionalAuth attaches an identity when a valid credential is presented
// and an anonymous one otherwise. Used by public endpoints that personalize
// behavior for authenticated callers.
func OptionalAuth(resolver *auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)

			identity, err := resolver.AuthenticateOptional(c.Request().Context(), header)
			if err != nil {
				return rejectHTTP(c, err)
			}

			attachIdentity(c, identity)
			return next(c)
		}
	}
}

// RequireVerifiedContact rejects authenticated users without a verified
// email or mobile. Must run after RequireAuth.
func RequireVerifiedContact(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity := auth.IdentityFrom(c.Request().Context())
		if identity.IsAnonymous() || !identity.VerifiedContact {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "verified email or mobile required",
			})
		}
		return next(c)
	}
}

func attachIdentity(c echo.Context, identity *auth.Identity) {
	ctx := auth.WithIdentity(c.Request().Context(), identity)
	c.SetRequest(c.Request().WithContext(ctx))
}

func rejectHTTP(c echo.Context, err error) error {
	if errors.Is(err, auth.ErrStoreUnavailable) {
		metrics.AuthChecks.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		slog.Error("auth_store_unavailable", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "service temporarily unavailable",
		})
	}

	metrics.AuthChecks.WithLabelValues(metrics.OutcomeRejected).Inc()
	slog.Info("auth_failed", "reason", err.Error(), "path", c.Path())
	return c.JSON(http.StatusForbidden, map[string]string{
		"error": "authentication failed",
	})
}
