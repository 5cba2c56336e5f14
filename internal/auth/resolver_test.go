// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/hubauth/internal/auth"
	"codeberg.org/oliverandrich/hubauth/internal/kvstore"
	"codeberg.org/oliverandrich/hubauth/internal/models"
	"codeberg.org/oliverandrich/hubauth/internal/repository"
	"codeberg.org/oliverandrich/hubauth/internal/testutil"
	"codeberg.org/oliverandrich/hubauth/internal/token"
)

type fixture struct {
	resolver *auth.Resolver
	codec    *token.Codec
	sessions *kvstore.Store
	repo     *repository.Repository
	user     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	_, client := testutil.NewTestRedis(t)
	codec := testutil.NewTestCodec(t)
	sessions := kvstore.New(client, token.PurposeAuthorization, time.Hour)
	user := testutil.NewTestUser(t, repo, "milad@example.com")

	return &fixture{
		resolver: auth.NewResolver(codec, sessions, repo),
		codec:    codec,
		sessions: sessions,
		repo:     repo,
		user:     user,
	}
}

// login issues a session token and writes the matching session record.
func (f *fixture) login(t *testing.T, userID int64) string {
	t.Helper()
	raw, err := f.codec.Issue(token.PurposeAuthorization, userID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(context.Background(), raw, strconv.FormatInt(userID, 10)))
	return raw
}

func TestAuthenticate_Success(t *testing.T) {
	f := newFixture(t)
	raw := f.login(t, f.user.ID)

	identity, err := f.resolver.Authenticate(context.Background(), "Bearer "+raw)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, identity.User.ID)
	assert.True(t, identity.VerifiedContact)
	assert.False(t, identity.IsAnonymous())
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMalformedCredential)
}

func TestAuthenticate_HeaderWithoutValue(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Authenticate(context.Background(), "Bearer")
	assert.ErrorIs(t, err, auth.ErrMalformedCredential)
}

func TestAuthenticate_HeaderWithExtraTokens(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Authenticate(context.Background(), "Bearer a b")
	assert.ErrorIs(t, err, auth.ErrMalformedCredential)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Authenticate(context.Background(), "Bearer garbage")
	assert.ErrorIs(t, err, token.ErrTokenInvalid)
}

func TestAuthenticate_RevokedSession(t *testing.T) {
	// Logout revokes immediately even though the signed token itself is
	// still valid until expiry.
	f := newFixture(t)
	raw := f.login(t, f.user.ID)

	require.NoError(t, f.sessions.Revoke(context.Background(), raw))

	// The token alone still verifies...
	_, err := f.codec.Verify(raw)
	require.NoError(t, err)

	// ...but authentication rejects on the missing session record.
	_, err = f.resolver.Authenticate(context.Background(), "Bearer "+raw)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestAuthenticate_SessionValueCoercion(t *testing.T) {
	// Stored "42" must match a decoded subject id of 42.
	f := newFixture(t)
	raw, err := f.codec.Issue(token.PurposeAuthorization, f.user.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(context.Background(), raw, strconv.FormatInt(f.user.ID, 10)))

	identity, err := f.resolver.Authenticate(context.Background(), "Bearer "+raw)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, identity.User.ID)
}

func TestAuthenticate_SessionUserMismatch(t *testing.T) {
	f := newFixture(t)
	raw, err := f.codec.Issue(token.PurposeAuthorization, f.user.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(context.Background(), raw, "999"))

	_, err = f.resolver.Authenticate(context.Background(), "Bearer "+raw)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestAuthenticate_UserDeleted(t *testing.T) {
	f := newFixture(t)
	raw, err := f.codec.Issue(token.PurposeAuthorization, 424242, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(context.Background(), raw, "424242"))

	_, err = f.resolver.Authenticate(context.Background(), "Bearer "+raw)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestAuthenticate_StoreUnavailableFailsClosed(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mr, client := testutil.NewTestRedis(t)
	codec := testutil.NewTestCodec(t)
	sessions := kvstore.New(client, token.PurposeAuthorization, time.Hour)
	user := testutil.NewTestUser(t, repo, "milad@example.com")
	resolver := auth.NewResolver(codec, sessions, repo)

	raw, err := codec.Issue(token.PurposeAuthorization, user.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	mr.Close()

	_, err = resolver.Authenticate(context.Background(), "Bearer "+raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
	assert.False(t, auth.IsRejection(err))
}

func TestAuthenticateOptional(t *testing.T) {
	f := newFixture(t)
	raw := f.login(t, f.user.ID)

	// Valid credential resolves normally.
	identity, err := f.resolver.AuthenticateOptional(context.Background(), "Bearer "+raw)
	require.NoError(t, err)
	assert.False(t, identity.IsAnonymous())

	// Any rejection becomes an anonymous identity.
	identity, err = f.resolver.AuthenticateOptional(context.Background(), "Bearer garbage")
	require.NoError(t, err)
	assert.True(t, identity.IsAnonymous())

	identity, err = f.resolver.AuthenticateOptional(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, identity.IsAnonymous())
}

func TestIdentityContext(t *testing.T) {
	f := newFixture(t)
	identity := &auth.Identity{User: f.user, VerifiedContact: true}

	ctx := auth.WithIdentity(context.Background(), identity)
	assert.Equal(t, identity, auth.IdentityFrom(ctx))
	assert.True(t, auth.IsAuthenticated(ctx))

	assert.Nil(t, auth.IdentityFrom(context.Background()))
	assert.False(t, auth.IsAuthenticated(context.Background()))

	anon := auth.WithIdentity(context.Background(), auth.Anonymous())
	assert.False(t, auth.IsAuthenticated(anon))
}
