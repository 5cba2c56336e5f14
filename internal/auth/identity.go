// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth resolves bearer tokens into identities. It is the only place
// that decides whether a request is authenticated; the HTTP and WebSocket
// gates just translate its verdicts.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/hubauth/internal/ctxkeys"
	"codeberg.org/oliverandrich/hubauth/internal/models"
)

// Identity is the result of a successful authentication: the user entity
// plus the verified-contact flag permission checks consume. It is
// recomputed per request, never persisted.
type Identity struct {
	User            *models.User
	VerifiedContact bool
}

// Anonymous returns the identity used by permissive endpoints when no valid
// credential is presented.
func Anonymous() *Identity {
	return &Identity{}
}

// IsAnonymous reports whether the identity carries no authenticated user.
func (i *Identity) IsAnonymous() bool {
	return i == nil || i.User == nil
}

// WithIdentity attaches the identity to the context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ctxkeys.Identity{}, identity)
}

// IdentityFrom returns the identity from the context, or nil when the
// request was not authenticated.
func IdentityFrom(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(ctxkeys.Identity{}).(*Identity); ok {
		return identity
	}
	return nil
}

// IsAuthenticated reports whether the context carries a non-anonymous
// identity.
func IsAuthenticated(ctx context.Context) bool {
	return !IdentityFrom(ctx).IsAnonymous()
}
