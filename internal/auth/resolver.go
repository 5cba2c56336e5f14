// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"codeberg.org/oliverandrich/hubauth/internal/kvstore"
	"codeberg.org/oliverandrich/hubauth/internal/models"
	"codeberg.org/oliverandrich/hubauth/internal/repository"
	"codeberg.org/oliverandrich/hubauth/internal/token"
)

// Rejection kinds. All collapse to the same client-visible response; the
// distinction exists for server-side diagnostics only, so nothing leaks
// about which layer failed.
var (
	// ErrMalformedCredential means no bearer value could be extracted.
	// Rejected before any codec or store call.
	ErrMalformedCredential = errors.New("access token is not exist")
	// ErrSessionNotFound means the token is structurally valid but no
	// matching live session record exists (logged out, revoked, or
	// expired out of the store).
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound means the token's subject no longer resolves to a
	// user. A rejection, not a server error.
	ErrUserNotFound = errors.New("user does not exist")
	// ErrStoreUnavailable means the session store could not be reached.
	// Authentication fails closed, and this is never reported as a
	// credential rejection so operators can tell an outage from a logout.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// IsRejection reports whether err is a credential rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, token.ErrTokenInvalid) ||
		errors.Is(err, token.ErrTokenExpired) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// UserDirectory is the lookup capability the resolver needs from the
// user-management collaborator.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Resolver turns raw bearer strings into identities. The two-layer check --
// signature and expiry first, then session membership -- keeps verification
// stateless while still allowing immediate server-side revocation.
type Resolver struct {
	codec    *token.Codec
	sessions *kvstore.Store
	users    UserDirectory
}

// NewResolver creates a resolver over the given codec, session store and
// user directory.
func NewResolver(codec *token.Codec, sessions *kvstore.Store, users UserDirectory) *Resolver {
	return &Resolver{codec: codec, sessions: sessions, users: users}
}

// Authenticate resolves the value of an Authorization header. The header
// must split into exactly a scheme and a value ("Bearer <token>").
func (r *Resolver) Authenticate(ctx context.Context, header string) (*Identity, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return nil, ErrMalformedCredential
	}
	return r.AuthenticateToken(ctx, parts[1])
}

// AuthenticateToken resolves a raw token value, as presented by WebSocket
// clients in the query string.
func (r *Resolver) AuthenticateToken(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrMalformedCredential
	}

	claims, err := r.codec.Verify(raw)
	if err != nil {
		return nil, err
	}

	stored, err := r.sessions.Get(ctx, raw)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	// The store may hold "42" for a subject id of 42; compare as integers.
	storedID, err := strconv.ParseInt(strings.TrimSpace(stored), 10, 64)
	if err != nil || storedID != claims.UserID {
		slog.Warn("auth_session_mismatch", "user_id", claims.UserID, "stored", stored)
		return nil, ErrSessionNotFound
	}

	user, err := r.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &Identity{User: user, VerifiedContact: user.HasVerifiedContact()}, nil
}

// AuthenticateOptional runs the same checks but converts any credential
// rejection into an explicit anonymous identity. Infrastructure failures
// still propagate; an outage must not silently demote callers to anonymous.
func (r *Resolver) AuthenticateOptional(ctx context.Context, header string) (*Identity, error) {
	identity, err := r.Authenticate(ctx, header)
	if err != nil {
		if IsRejection(err) {
			return Anonymous(), nil
		}
		return nil, err
	}
	return identity, nil
}
