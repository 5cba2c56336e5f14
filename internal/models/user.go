// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// User is the account record owned by the user directory.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID               int64          `db:"id" json:"id"`
	Email            sql.NullString `db:"email" json:"email"`
	Mobile           sql.NullString `db:"mobile" json:"mobile"`
	FirstName        string         `db:"first_name" json:"first_name"`
	LastName         string         `db:"last_name" json:"last_name"`
	PasswordHash     string         `db:"password_hash" json:"-"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	IsVerifiedEmail  bool           `db:"is_verified_email" json:"is_verified_email"`
	IsVerifiedMobile bool           `db:"is_verified_mobile" json:"is_verified_mobile"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// MarshalJSON flattens the nullable contact fields into plain strings so
// API payloads carry "email": "a@b.c" or null instead of the sql wrapper.
func (u User) MarshalJSON() ([]byte, error) {
	var email, mobile *string
	if u.Email.Valid {
		email = &u.Email.String
	}
	if u.Mobile.Valid {
		mobile = &u.Mobile.String
	}
	return json.Marshal(struct {
		ID               int64     `json:"id"`
		Email            *string   `json:"email"`
		Mobile           *string   `json:"mobile"`
		FirstName        string    `json:"first_name"`
		LastName         string    `json:"last_name"`
		IsActive         bool      `json:"is_active"`
		IsVerifiedEmail  bool      `json:"is_verified_email"`
		IsVerifiedMobile bool      `json:"is_verified_mobile"`
		CreatedAt        time.Time `json:"created_at"`
		UpdatedAt        time.Time `json:"updated_at"`
	}{u.ID, email, mobile, u.FirstName, u.LastName, u.IsActive,
		u.IsVerifiedEmail, u.IsVerifiedMobile, u.CreatedAt, u.UpdatedAt})
}

// HasVerifiedContact reports whether at least one contact method is verified.
// Permission checks for protected actions key off this flag.
func (u *User) HasVerifiedContact() bool {
	return u.IsVerifiedEmail || u.IsVerifiedMobile
}

// FullName returns the display name used in chat payloads.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// EmailAddress returns the email or an empty string when none is set.
func (u *User) EmailAddress() string {
	if u.Email.Valid {
		return u.Email.String
	}
	return ""
}

// MobileNumber returns the mobile number or an empty string when none is set.
func (u *User) MobileNumber() string {
	if u.Mobile.Valid {
		return u.Mobile.String
	}
	return ""
}

// OnlineUser marks a user as connected to the chat hub. Presence lives in
// the database so every worker observes the same list.
type OnlineUser struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
