// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies the signed, expiring tokens used for
// sessions, verification links and one-time login flows. Tokens are
// self-contained; revocability comes from the session store, not from here.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Well-known purposes. Dynamic per-operation purposes are allowed as well;
// the purpose string namespaces the ephemeral store records for the flow.
const (
	PurposeAuthorization  = "Authorization"
	PurposeVerifyEmail    = "Verify/Email"
	PurposeVerifyMobile   = "Verify/Mobile"
	PurposeOTPLogin       = "OTP/Login"
	PurposeForgetPassword = "ForgetPassword/Email"
	PurposeForgetOTP      = "ForgetPassword/OTP"
	PurposePreRegister    = "PreRegister"
)

var (
	// ErrTokenInvalid is returned when the signature does not verify
	// (corruption, tampering, or a wrong secret).
	ErrTokenInvalid = errors.New("token is not valid")
	// ErrTokenExpired is returned when the signature verifies but the
	// token is past its expiry. Equally fatal to authorization.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload carried by every issued token.
type Claims struct {
	IssuedFor string `json:"issued_for"`
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a server-held secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
}

// NewCodec creates a codec for the given secret and signing method
// identifier (HS256, HS384, HS512).
func NewCodec(secret, method string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("token: secret must not be empty")
	}
	m := jwt.GetSigningMethod(method)
	if _, ok := m.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("token: unsupported signing method %q", method)
	}
	return &Codec{secret: []byte(secret), method: m}, nil
}

// Issue creates a signed token for the given purpose and subject expiring
// at the given time.
func (c *Codec) Issue(purpose string, userID int64, expiresAt time.Time) (string, error) {
	return c.sign(Claims{
		IssuedFor: purpose,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

// IssueEmail creates a signed token that additionally carries the email it
// was issued for, used as an extra integrity check by email flows.
func (c *Codec) IssueEmail(purpose string, userID int64, email string, expiresAt time.Time) (string, error) {
	return c.sign(Claims{
		IssuedFor: purpose,
		UserID:    userID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

func (c *Codec) sign(claims Claims) (string, error) {
	if claims.IssuedFor == "" {
		return "", fmt.Errorf("token: purpose must not be empty")
	}
	if claims.UserID <= 0 {
		return "", fmt.Errorf("token: user id must be positive")
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: signing failed: %w", err)
	}
	return signed, nil
}

// Verify decodes a token and validates signature and expiry. Expiry and
// signature failures are distinguishable for diagnostics but both reject.
func (c *Codec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
