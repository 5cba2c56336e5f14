// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package account implements the issuance flows that sit on top of the
// token codec and the ephemeral store: password and one-time-code login,
// registration, contact verification and password reset. Every successful
// login writes the session record that makes the signed token revocable.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/hubauth/internal/config"
	"codeberg.org/oliverandrich/hubauth/internal/kvstore"
	"codeberg.org/oliverandrich/hubauth/internal/models"
	"codeberg.org/oliverandrich/hubauth/internal/repository"
	"codeberg.org/oliverandrich/hubauth/internal/services/otp"
	"codeberg.org/oliverandrich/hubauth/internal/token"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidDestination = errors.New("invalid email/mobile format")
	ErrWeakPassword       = errors.New("password does not meet requirements")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

var mobileRe = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// IsEmail reports whether the destination parses as an email address.
func IsEmail(destination string) bool {
	_, err := mail.ParseAddress(destination)
	return err == nil
}

// IsMobile reports whether the destination looks like a mobile number.
func IsMobile(destination string) bool {
	return mobileRe.MatchString(destination)
}

// Service runs the account flows.
type Service struct {
	repo     *repository.Repository
	codec    *token.Codec
	sessions *kvstore.Store
	otp      *otp.Service
	cfg      *config.AuthConfig
}

// NewService creates the account service.
func NewService(repo *repository.Repository, codec *token.Codec, sessions *kvstore.Store, otpSvc *otp.Service, cfg *config.AuthConfig) *Service {
	return &Service{repo: repo, codec: codec, sessions: sessions, otp: otpSvc, cfg: cfg}
}

// IssueSession issues a signed session token for the user and writes the
// live session record keyed by the token.
func (s *Service) IssueSession(ctx context.Context, userID int64) (string, error) {
	raw, err := s.codec.Issue(token.PurposeAuthorization, userID, time.Now().Add(s.cfg.SessionTTL()))
	if err != nil {
		return "", err
	}
	if err := s.sessions.Create(ctx, raw, strconv.FormatInt(userID, 10)); err != nil {
		return "", fmt.Errorf("account: storing session: %w", err)
	}
	return raw, nil
}

// Login authenticates by email or mobile plus password and issues a
// session token.
func (s *Service) Login(ctx context.Context, destination, password string) (*models.User, string, error) {
	if !IsEmail(destination) && !IsMobile(destination) {
		return nil, "", ErrInvalidDestination
	}

	user, err := s.repo.GetUserByEmailOrMobile(ctx, destination)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "destination", destination, "reason", "user_not_found")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("account: looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "invalid_password")
		return nil, "", ErrInvalidCredentials
	}

	raw, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	slog.Info("login_success", "user_id", user.ID)
	return user, raw, nil
}

// Logout revokes the session record for the presented token. The signed
// token stays structurally valid until expiry but no longer authenticates.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if err := s.sessions.Revoke(ctx, raw); err != nil {
		return fmt.Errorf("account: revoking session: %w", err)
	}
	slog.Info("logout", "token_prefix", prefix(raw))
	return nil
}

// SendLoginCode sends a one-time login code to an existing user's email or
// mobile.
func (s *Service) SendLoginCode(ctx context.Context, destination string) error {
	if _, err := s.lookupByDestination(ctx, destination); err != nil {
		return err
	}
	if IsMobile(destination) {
		return s.otp.SendMobileCode(ctx, destination, token.PurposeOTPLogin)
	}
	return s.otp.SendEmailCode(ctx, destination, token.PurposeOTPLogin)
}

// LoginWithCode consumes a one-time login code and issues a session token.
func (s *Service) LoginWithCode(ctx context.Context, destination, code string) (*models.User, string, error) {
	if err := s.otp.ConsumeCode(ctx, destination, token.PurposeOTPLogin, code); err != nil {
		return nil, "", err
	}
	user, err := s.lookupByDestination(ctx, destination)
	if err != nil {
		return nil, "", err
	}
	raw, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	slog.Info("otp_login_success", "user_id", user.ID)
	return user, raw, nil
}

// PreRegister sends a verification code to a not-yet-registered email or
// mobile. Taken destinations are rejected up front.
func (s *Service) PreRegister(ctx context.Context, destination string) error {
	if !IsEmail(destination) && !IsMobile(destination) {
		return ErrInvalidDestination
	}
	_, err := s.repo.GetUserByEmailOrMobile(ctx, destination)
	if err == nil {
		return ErrUserExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("account: checking destination: %w", err)
	}

	if IsMobile(destination) {
		return s.otp.SendMobileCode(ctx, destination, token.PurposePreRegister)
	}
	return s.otp.SendEmailCode(ctx, destination, token.PurposePreRegister)
}

// VerifyPreRegister checks the pre-registration code without consuming it,
// so the subsequent Register call can still require it.
func (s *Service) VerifyPreRegister(ctx context.Context, destination, code string) error {
	return s.otp.CheckCode(ctx, destination, token.PurposePreRegister, code)
}

// RegisterParams holds the fields for a new registration.
type RegisterParams struct {
	Destination string // email or mobile, already holding a live code
	FirstName   string
	LastName    string
	Password    string
	Code        string
}

// Register consumes the pre-registration code and creates the account with
// the registered destination marked verified. A session token is issued
// immediately.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, string, error) {
	if !IsEmail(params.Destination) && !IsMobile(params.Destination) {
		return nil, "", ErrInvalidDestination
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, "", err
	}
	if err := s.otp.ConsumeCode(ctx, params.Destination, token.PurposePreRegister, params.Code); err != nil {
		return nil, "", err
	}

	create := repository.CreateUserParams{
		FirstName: params.FirstName,
		LastName:  params.LastName,
		IsActive:  true,
	}
	if IsEmail(params.Destination) {
		create.Email = params.Destination
	} else {
		create.Mobile = params.Destination
	}

	user, err := s.repo.CreateUser(ctx, create)
	if err != nil {
		return nil, "", fmt.Errorf("account: creating user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("account: hashing password: %w", err)
	}
	if err := s.repo.UpdateUserPassword(ctx, user.ID, string(hash)); err != nil {
		return nil, "", fmt.Errorf("account: storing password: %w", err)
	}

	// The destination was just proven reachable.
	if IsEmail(params.Destination) {
		err = s.repo.SetVerifiedEmail(ctx, user.ID)
	} else {
		err = s.repo.SetVerifiedMobile(ctx, user.ID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("account: marking verified: %w", err)
	}

	user, err = s.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	raw, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	slog.Info("register_success", "user_id", user.ID)
	return user, raw, nil
}

// SendVerifyMobile sends a verification code to the user's mobile.
func (s *Service) SendVerifyMobile(ctx context.Context, user *models.User) error {
	mobile := user.MobileNumber()
	if mobile == "" {
		return ErrInvalidDestination
	}
	return s.otp.SendMobileCode(ctx, mobile, token.PurposeVerifyMobile)
}

// VerifyMobile consumes the verification code and marks the mobile
// verified.
func (s *Service) VerifyMobile(ctx context.Context, user *models.User, code string) error {
	mobile := user.MobileNumber()
	if mobile == "" {
		return ErrInvalidDestination
	}
	if err := s.otp.ConsumeCode(ctx, mobile, token.PurposeVerifyMobile, code); err != nil {
		return err
	}
	if err := s.repo.SetVerifiedMobile(ctx, user.ID); err != nil {
		return err
	}
	slog.Info("mobile_verified", "user_id", user.ID)
	return nil
}

// SendVerifyEmail sends a verification code to the user's email.
func (s *Service) SendVerifyEmail(ctx context.Context, user *models.User) error {
	if user.EmailAddress() == "" {
		return ErrInvalidDestination
	}
	return s.otp.SendEmailCode(ctx, user.EmailAddress(), token.PurposeVerifyEmail)
}

// VerifyEmailCode consumes the emailed code and marks the email verified.
func (s *Service) VerifyEmailCode(ctx context.Context, user *models.User, code string) error {
	address := user.EmailAddress()
	if address == "" {
		return ErrInvalidDestination
	}
	if err := s.otp.ConsumeCode(ctx, address, token.PurposeVerifyEmail, code); err != nil {
		return err
	}
	if err := s.repo.SetVerifiedEmail(ctx, user.ID); err != nil {
		return err
	}
	slog.Info("email_verified", "user_id", user.ID)
	return nil
}

// SendVerifyEmailLink mails a signed verification link to the user.
func (s *Service) SendVerifyEmailLink(ctx context.Context, user *models.User) error {
	_, err := s.otp.SendEmailToken(ctx, user, token.PurposeVerifyEmail)
	return err
}

// VerifyEmailToken consumes a verification link token and marks the email
// verified. The token's email claim must still match the account.
func (s *Service) VerifyEmailToken(ctx context.Context, raw string) (*models.User, error) {
	claims, err := s.otp.ConsumeEmailToken(ctx, raw, token.PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.EmailAddress() != claims.Email {
		return nil, token.ErrTokenInvalid
	}
	if err := s.repo.SetVerifiedEmail(ctx, user.ID); err != nil {
		return nil, err
	}
	slog.Info("email_verified", "user_id", user.ID)
	return s.repo.GetUserByID(ctx, user.ID)
}

// SendForgetPassword starts a password reset: a signed link for email
// destinations, a one-time code for mobiles.
func (s *Service) SendForgetPassword(ctx context.Context, destination string) error {
	user, err := s.lookupByDestination(ctx, destination)
	if err != nil {
		return err
	}
	if IsMobile(destination) {
		return s.otp.SendMobileCode(ctx, destination, token.PurposeForgetOTP)
	}
	_, err = s.otp.SendEmailToken(ctx, user, token.PurposeForgetPassword)
	return err
}

// ResetPasswordWithCode consumes a mobile reset code and sets the new
// password.
func (s *Service) ResetPasswordWithCode(ctx context.Context, mobile, code, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := s.otp.ConsumeCode(ctx, mobile, token.PurposeForgetOTP, code); err != nil {
		return err
	}
	user, err := s.repo.GetUserByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

// ResetPasswordWithToken consumes an emailed reset token and sets the new
// password.
func (s *Service) ResetPasswordWithToken(ctx context.Context, raw, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	claims, err := s.otp.ConsumeEmailToken(ctx, raw, token.PurposeForgetPassword)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, claims.UserID, newPassword)
}

func (s *Service) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("account: hashing password: %w", err)
	}
	if err := s.repo.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("account: storing password: %w", err)
	}
	slog.Info("password_reset", "user_id", userID)
	return nil
}

func (s *Service) lookupByDestination(ctx context.Context, destination string) (*models.User, error) {
	if !IsEmail(destination) && !IsMobile(destination) {
		return nil, ErrInvalidDestination
	}
	user, err := s.repo.GetUserByEmailOrMobile(ctx, destination)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("account: looking up user: %w", err)
	}
	return user, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	numeric := true
	for _, r := range password {
		if r < '0' || r > '9' {
			numeric = false
			break
		}
	}
	if numeric {
		return ErrWeakPassword
	}
	return nil
}

func prefix(raw string) string {
	if len(raw) <= 8 {
		return raw
	}
	return raw[:8]
}
