// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp owns the one-time code and verification token records in the
// ephemeral store: issuing them, delivering them out-of-band, and checking
// them. At most one record is live per (purpose, destination); a resend
// supersedes the previous code.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"codeberg.org/oliverandrich/hubauth/internal/config"
	"codeberg.org/oliverandrich/hubauth/internal/kvstore"
	"codeberg.org/oliverandrich/hubauth/internal/models"
	"codeberg.org/oliverandrich/hubauth/internal/services/email"
	"codeberg.org/oliverandrich/hubauth/internal/services/sms"
	"codeberg.org/oliverandrich/hubauth/internal/token"
)

var (
	// ErrNoLiveCode means no record exists for the destination: never
	// sent, already consumed, or expired out of the store.
	ErrNoLiveCode = errors.New("otp: no live code for destination")
	// ErrCodeMismatch means a record exists but the presented code or
	// token does not match it.
	ErrCodeMismatch = errors.New("otp: code does not match")
)

// Service issues and checks one-time codes and email verification tokens.
type Service struct {
	client  *redis.Client
	cfg     *config.AuthConfig
	codec   *token.Codec
	baseURL string
	email   email.Sender
	sms     sms.Sender
}

// NewService creates the OTP service. The Redis client is shared; stores
// are derived per purpose so each flow gets its own namespace.
func NewService(client *redis.Client, cfg *config.AuthConfig, codec *token.Codec, baseURL string, emailSender email.Sender, smsSender sms.Sender) *Service {
	return &Service{
		client:  client,
		cfg:     cfg,
		codec:   codec,
		baseURL: baseURL,
		email:   emailSender,
		sms:     smsSender,
	}
}

func (s *Service) codes(purpose string) *kvstore.Store {
	return kvstore.ForOTP(s.client, purpose, s.cfg)
}

func (s *Service) tokens(purpose string) *kvstore.Store {
	return kvstore.ForEmailTokens(s.client, purpose, s.cfg)
}

// GenerateCode returns a random numeric code of the configured length.
func (s *Service) GenerateCode() (string, error) {
	length := s.cfg.OTPLength
	if length <= 0 {
		length = 5
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("otp: generating code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

// SendMobileCode generates a code for (purpose, mobile), supersedes any
// prior record, and delivers it by SMS.
func (s *Service) SendMobileCode(ctx context.Context, mobile, purpose string) error {
	code, err := s.GenerateCode()
	if err != nil {
		return err
	}
	if err := s.codes(purpose).Replace(ctx, mobile, code); err != nil {
		return fmt.Errorf("otp: storing code: %w", err)
	}
	if err := s.sms.Send(ctx, mobile, code); err != nil {
		// Delivery is fire-and-forget; the record stays live for resend.
		slog.Error("otp_sms_send_failed", "mobile", mobile, "purpose", purpose, "error", err)
	}
	return nil
}

// SendEmailCode generates a code for (purpose, email), supersedes any prior
// record, and delivers it by email.
func (s *Service) SendEmailCode(ctx context.Context, address, purpose string) error {
	code, err := s.GenerateCode()
	if err != nil {
		return err
	}
	if err := s.codes(purpose).Replace(ctx, address, code); err != nil {
		return fmt.Errorf("otp: storing code: %w", err)
	}
	if err := s.email.Send(ctx, address, purpose, "Your verification code: "+code); err != nil {
		slog.Error("otp_email_send_failed", "email", address, "purpose", purpose, "error", err)
	}
	return nil
}

// SendEmailToken issues a signed verification token for the user's email,
// supersedes any prior record for (purpose, email), and mails the
// verification link. Returns the raw token.
func (s *Service) SendEmailToken(ctx context.Context, user *models.User, purpose string) (string, error) {
	address := user.EmailAddress()
	if address == "" {
		return "", fmt.Errorf("otp: user %d has no email", user.ID)
	}

	raw, err := s.codec.IssueEmail(purpose, user.ID, address, time.Now().Add(s.cfg.EmailTokenTTL()))
	if err != nil {
		return "", err
	}
	if err := s.tokens(purpose).Replace(ctx, address, raw); err != nil {
		return "", fmt.Errorf("otp: storing token: %w", err)
	}

	link := fmt.Sprintf("%s/auth/verify-email/%s", s.baseURL, raw)
	if err := s.email.Send(ctx, address, purpose, "Follow this link to continue: "+link); err != nil {
		slog.Error("otp_email_send_failed", "email", address, "purpose", purpose, "error", err)
	}
	return raw, nil
}

// CheckCode verifies the presented code against the live record for
// (purpose, destination) without consuming it.
func (s *Service) CheckCode(ctx context.Context, destination, purpose, code string) error {
	stored, err := s.codes(purpose).Get(ctx, destination)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return ErrNoLiveCode
		}
		return err
	}
	if stored != code {
		return ErrCodeMismatch
	}
	return nil
}

// ConsumeCode verifies the code and revokes it so it cannot be replayed.
func (s *Service) ConsumeCode(ctx context.Context, destination, purpose, code string) error {
	if err := s.CheckCode(ctx, destination, purpose, code); err != nil {
		return err
	}
	return s.codes(purpose).Revoke(ctx, destination)
}

// CheckEmailToken verifies a raw email token: signature and expiry, purpose
// tag, and the live store record matching the presented token.
func (s *Service) CheckEmailToken(ctx context.Context, raw, purpose string) (*token.Claims, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.IssuedFor != purpose {
		return nil, token.ErrTokenInvalid
	}

	stored, err := s.tokens(purpose).Get(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNoLiveCode
		}
		return nil, err
	}
	if stored != raw {
		return nil, ErrCodeMismatch
	}
	return claims, nil
}

// ConsumeEmailToken verifies the token and revokes its record.
func (s *Service) ConsumeEmailToken(ctx context.Context, raw, purpose string) (*token.Claims, error) {
	claims, err := s.CheckEmailToken(ctx, raw, purpose)
	if err != nil {
		return nil, err
	}
	if err := s.tokens(purpose).Revoke(ctx, claims.Email); err != nil {
		return nil, err
	}
	return claims, nil
}
