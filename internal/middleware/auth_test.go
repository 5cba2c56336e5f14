// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/hubauth/internal/auth"
	"codeberg.org/oliverandrich/hubauth/internal/kvstore"
	"codeberg.org/oliverandrich/hubauth/internal/middleware"
	"codeberg.org/oliverandrich/hubauth/internal/models"
	"codeberg.org/oliverandrich/hubauth/internal/repository"
	"codeberg.org/oliverandrich/hubauth/internal/testutil"
	"codeberg.org/oliverandrich/hubauth/internal/token"
)

type gateFixture struct {
	e        *echo.Echo
	resolver *auth.Resolver
	sessions *kvstore.Store
	codec    *token.Codec
	user     *models.User
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	_, client := testutil.NewTestRedis(t)
	codec := testutil.NewTestCodec(t)
	sessions := kvstore.New(client, token.PurposeAuthorization, time.Hour)
	user := testutil.NewTestUser(t, repo, "milad@example.com")

	return &gateFixture{
		e:        echo.New(),
		resolver: auth.NewResolver(codec, sessions, repo),
		sessions: sessions,
		codec:    codec,
		user:     user,
	}
}

func (f *gateFixture) bearer(t *testing.T) string {
	t.Helper()
	raw, err := f.codec.Issue(token.PurposeAuthorization, f.user.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.sessions.Create(context.Background(), raw, strconv.FormatInt(f.user.ID, 10)))
	return "Bearer " + raw
}

// echoHandler reports the identity the gate attached.
func echoHandler(c echo.Context) error {
	identity := auth.IdentityFrom(c.Request().Context())
	if identity.IsAnonymous() {
		return c.JSON(http.StatusOK, map[string]any{"anonymous": true})
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": identity.User.ID})
}

func TestRequireAuth_Authenticated(t *testing.T) {
	f := newGateFixture(t)
	h := middleware.RequireAuth(f.resolver)(echoHandler)

	c, rec := testutil.NewEchoContextWithHeaders(f.e, http.MethodGet, "/protected", nil,
		map[string]string{echo.HeaderAuthorization: f.bearer(t)})

	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id")
}

func TestRequireAuth_NoToken(t *testing.T) {
	f := newGateFixture(t)
	h := middleware.RequireAuth(f.resolver)(echoHandler)

	c, rec := testutil.NewEchoContext(f.e, http.MethodGet, "/protected", nil)

	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	f := newGateFixture(t)
	h := middleware.RequireAuth(f.resolver)(echoHandler)

	c, rec := testutil.NewEchoContextWithHeaders(f.e, http.MethodGet, "/protected", nil,
		map[string]string{echo.HeaderAuthorization: "Bearer garbage"})

	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAuth_RevokedSession(t *testing.T) {
	f := newGateFixture(t)
	h := middleware.RequireAuth(f.resolver)(echoHandler)
	bearer := f.bearer(t)

	// First request passes.
	c, rec := testutil.NewEchoContextWithHeaders(f.e, http.MethodGet, "/protected", nil,
		map[string]string{echo.HeaderAuthorization: bearer})
	require.NoError(t, h(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Revoke the session; same bearer now rejects.
	raw := bearer[len("Bearer "):]
	require.NoError(t, f.sessions.Revoke(context.Background(), raw))

	c, rec = testutil.NewEchoContextWithHeaders(f.e, http.MethodGet, "/protected", nil,
		map[string]string{echo.HeaderAuthorization: bearer})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAuth_StoreUnavailableIs503(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	mr, client := testutil.NewTestRedis(t)
	codec := testutil.NewTestCodec(t)
	sessions := kvstore.New(client, token.PurposeAuthorization, time.Hour)
	user := testutil.NewTestUser(t, repo, "milad@example.com")
	resolver := auth.NewResolver(codec, sessions, repo)

	raw, err := codec.Issue(token.PurposeAuthorization, user.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	mr.Close()

	e := echo.New()
	h := middleware.RequireAuth(resolver)(echoHandler)
	c, rec := testutil.NewEchoContextWithHeaders(e, http.MethodGet, "/protected", nil,
		map[string]string{echo.HeaderAuthorization: "Bearer " + raw})

	require.NoError(t, h(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	f := newGateFixture(t)
	h := middleware.OptionalAuth(f.resolver)(echoHandler)

	// Without a credential the request continues anonymously.
	c, rec := testutil.NewEchoContext(f.e, http.MethodGet, "/public", nil)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "anonymous")

	// With a valid credential the identity is attached.
	c, rec = testutil.NewEchoContextWithHeaders(f.e, http.MethodGet, "/public", nil,
		map[string]string{echo.HeaderAuthorization: f.bearer(t)})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id")
}

func TestRequireVerifiedContact(t *testing.T) {
	f := newGateFixture(t)
	_, repo := testutil.NewTestDB(t)

	unverified, err := repo.CreateUser(context.Background(),
		repository.CreateUserParams{Email: "fresh@example.com", IsActive: true})
	require.NoError(t, err)

	h := middleware.RequireVerifiedContact(echoHandler)

	// Verified user passes.
	c, rec := testutil.NewEchoContext(f.e, http.MethodGet, "/verified-only", nil)
	ctx := auth.WithIdentity(c.Request().Context(), &auth.Identity{User: f.user, VerifiedContact: true})
	c.SetRequest(c.Request().WithContext(ctx))
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unverified user is rejected.
	c, rec = testutil.NewEchoContext(f.e, http.MethodGet, "/verified-only", nil)
	ctx = auth.WithIdentity(c.Request().Context(), &auth.Identity{User: unverified, VerifiedContact: false})
	c.SetRequest(c.Request().WithContext(ctx))
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Anonymous is rejected.
	c, rec = testutil.NewEchoContext(f.e, http.MethodGet, "/verified-only", nil)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
