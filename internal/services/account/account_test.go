// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/hubauth/internal/config"
	"codeberg.org/oliverandrich/hubauth/internal/kvstore"
	"codeberg.org/oliverandrich/hubauth/internal/repository"
	"codeberg.org/oliverandrich/hubauth/internal/services/account"
	"codeberg.org/oliverandrich/hubauth/internal/services/otp"
	"codeberg.org/oliverandrich/hubauth/internal/testutil"
	"codeberg.org/oliverandrich/hubauth/internal/token"
)

type nullEmailSender struct{}

func (nullEmailSender) Send(context.Context, string, string, string) error { return nil }

type nullSMSSender struct{}

func (nullSMSSender) Send(context.Context, string, string) error { return nil }

type fixture struct {
	svc   *account.Service
	repo  *repository.Repository
	mr    *miniredis.Miniredis
	codec *token.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	mr, client := testutil.NewTestRedis(t)
	codec := testutil.NewTestCodec(t)
	cfg := &config.AuthConfig{
		Secret:          "test-secret",
		SigningMethod:   "HS256",
		SessionTTLDays:  2,
		OTPTTL:          300,
		EmailTokenHours: 24,
		OTPLength:       5,
	}
	otpSvc := otp.NewService(client, cfg, codec, "http://localhost:8080", nullEmailSender{}, nullSMSSender{})
	svc := account.NewService(repo, codec, kvstore.ForSessions(client, cfg), otpSvc, cfg)
	return &fixture{svc: svc, repo: repo, mr: mr, codec: codec}
}

// code reads the live one-time code straight out of the store.
func (f *fixture) code(t *testing.T, purpose, destination string) string {
	t.Helper()
	v, err := f.mr.Get(purpose + "_" + destination)
	require.NoError(t, err)
	return v
}

func (f *fixture) userWithPassword(t *testing.T, email, password string) int64 {
	t.Helper()
	user := testutil.NewTestUser(t, f.repo, email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateUserPassword(context.Background(), user.ID, string(hash)))
	return user.ID
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.userWithPassword(t, "ada@example.com", "correct horse")

	user, raw, err := f.svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.NotEmpty(t, raw)

	// The session record keyed by the token holds the user id.
	v, err := f.mr.Get("Authorization_" + raw)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.userWithPassword(t, "ada@example.com", "correct horse")

	_, _, err := f.svc.Login(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
}

func TestLogin_BadDestination(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Login(context.Background(), "not-a-destination", "whatever")
	assert.ErrorIs(t, err, account.ErrInvalidDestination)
}

func TestLogout_RevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.userWithPassword(t, "ada@example.com", "correct horse")

	_, raw, err := f.svc.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, raw))
	assert.False(t, f.mr.Exists("Authorization_"+raw))

	// Logout of an already revoked token is a no-op.
	require.NoError(t, f.svc.Logout(ctx, raw))
}

func TestLoginWithCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.userWithPassword(t, "ada@example.com", "correct horse")

	require.NoError(t, f.svc.SendLoginCode(ctx, "ada@example.com"))
	code := f.code(t, token.PurposeOTPLogin, "ada@example.com")

	user, raw, err := f.svc.LoginWithCode(ctx, "ada@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.True(t, f.mr.Exists("Authorization_"+raw))

	// The code is single use.
	_, _, err = f.svc.LoginWithCode(ctx, "ada@example.com", code)
	assert.ErrorIs(t, err, otp.ErrNoLiveCode)
}

func TestSendLoginCode_UnknownUser(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SendLoginCode(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, account.ErrUserNotFound)
}

func TestRegisterFlow_Email(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.PreRegister(ctx, "new@example.com"))
	code := f.code(t, token.PurposePreRegister, "new@example.com")

	// Checking does not consume; register still succeeds afterwards.
	require.NoError(t, f.svc.VerifyPreRegister(ctx, "new@example.com", code))

	user, raw, err := f.svc.Register(ctx, account.RegisterParams{
		Destination: "new@example.com",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Password:    "correct horse",
		Code:        code,
	})
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsVerifiedEmail)
	assert.True(t, f.mr.Exists("Authorization_"+raw))

	// The new password works for a regular login.
	_, _, err = f.svc.Login(ctx, "new@example.com", "correct horse")
	require.NoError(t, err)
}

func TestRegisterFlow_Mobile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.PreRegister(ctx, "+15551234567"))
	code := f.code(t, token.PurposePreRegister, "+15551234567")

	user, _, err := f.svc.Register(ctx, account.RegisterParams{
		Destination: "+15551234567",
		Password:    "correct horse",
		Code:        code,
	})
	require.NoError(t, err)
	assert.True(t, user.IsVerifiedMobile)
	assert.False(t, user.IsVerifiedEmail)
}

func TestPreRegister_TakenDestination(t *testing.T) {
	f := newFixture(t)
	f.userWithPassword(t, "ada@example.com", "correct horse")

	err := f.svc.PreRegister(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, account.ErrUserExists)
}

func TestRegister_WrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.PreRegister(ctx, "new@example.com"))
	code := f.code(t, token.PurposePreRegister, "new@example.com")
	wrong := "00000"
	if wrong == code {
		wrong = "00001"
	}

	_, _, err := f.svc.Register(ctx, account.RegisterParams{
		Destination: "new@example.com",
		Password:    "correct horse",
		Code:        wrong,
	})
	assert.ErrorIs(t, err, otp.ErrCodeMismatch)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Register(context.Background(), account.RegisterParams{
		Destination: "new@example.com",
		Password:    "short",
		Code:        "12345",
	})
	assert.ErrorIs(t, err, account.ErrWeakPassword)

	_, _, err = f.svc.Register(context.Background(), account.RegisterParams{
		Destination: "new@example.com",
		Password:    "123456789012",
		Code:        "12345",
	})
	assert.ErrorIs(t, err, account.ErrWeakPassword)
}

func TestVerifyMobile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.repo.CreateUser(ctx, repository.CreateUserParams{
		Mobile:   "+15551234567",
		IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SendVerifyMobile(ctx, user))
	code := f.code(t, token.PurposeVerifyMobile, "+15551234567")

	require.NoError(t, f.svc.VerifyMobile(ctx, user, code))

	fresh, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, fresh.IsVerifiedMobile)
}

func TestVerifyEmailCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.repo.CreateUser(ctx, repository.CreateUserParams{
		Email: "ada@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SendVerifyEmail(ctx, user))
	code := f.code(t, token.PurposeVerifyEmail, "ada@example.com")

	require.NoError(t, f.svc.VerifyEmailCode(ctx, user, code))

	fresh, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, fresh.IsVerifiedEmail)
	assert.True(t, fresh.IsActive)
}

func TestVerifyEmailToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.repo.CreateUser(ctx, repository.CreateUserParams{
		Email: "ada@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SendVerifyEmailLink(ctx, user))
	raw, err := f.mr.Get(token.PurposeVerifyEmail + "_ada@example.com")
	require.NoError(t, err)

	verified, err := f.svc.VerifyEmailToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.True(t, verified.IsVerifiedEmail)

	// The link is single use.
	_, err = f.svc.VerifyEmailToken(ctx, raw)
	assert.ErrorIs(t, err, otp.ErrNoLiveCode)
}

func TestResetPasswordWithToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.userWithPassword(t, "ada@example.com", "old password")

	require.NoError(t, f.svc.SendForgetPassword(ctx, "ada@example.com"))
	raw, err := f.mr.Get(token.PurposeForgetPassword + "_ada@example.com")
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetPasswordWithToken(ctx, raw, "new password"))

	_, _, err = f.svc.Login(ctx, "ada@example.com", "old password")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "ada@example.com", "new password")
	require.NoError(t, err)
}

func TestResetPasswordWithCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.repo.CreateUser(ctx, repository.CreateUserParams{
		Mobile:   "+15551234567",
		IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SendForgetPassword(ctx, "+15551234567"))
	code := f.code(t, token.PurposeForgetOTP, "+15551234567")

	require.NoError(t, f.svc.ResetPasswordWithCode(ctx, "+15551234567", code, "new password"))

	fresh, err := f.repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t,
		bcrypt.CompareHashAndPassword([]byte(fresh.PasswordHash), []byte("new password")))
}

func TestSendForgetPassword_UnknownUser(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SendForgetPassword(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, account.ErrUserNotFound)
}
