// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"strings"

	"codeberg.org/oliverandrich/hubauth/internal/models"
)

// CreateUserParams holds the fields for a new account.
type CreateUserParams struct {
	Email     string
	Mobile    string
	FirstName string
	LastName  string
	IsActive  bool
}

// CreateUser creates a new user. Exactly one of Email and Mobile may be
// empty; the unique indexes reject duplicates.
func (r *Repository) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, mobile, first_name, last_name, is_active)
		VALUES (?, ?, ?, ?, ?)`,
		nullable(params.Email), nullable(params.Mobile),
		params.FirstName, params.LastName, params.IsActive,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by id. Returns ErrNotFound for unknown ids;
// this is the lookup_by_id capability the authentication resolver uses.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, strings.ToLower(email)); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByMobile retrieves a user by mobile number.
func (r *Repository) GetUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE mobile = ?`, mobile); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmailOrMobile retrieves a user by either contact method.
func (r *Repository) GetUserByEmailOrMobile(ctx context.Context, destination string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT * FROM users WHERE email = ? OR mobile = ?`,
		strings.ToLower(destination), destination)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UpdateUserPassword updates a user's password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id)
	return err
}

// SetVerifiedEmail marks the user's email as verified and activates the
// account.
func (r *Repository) SetVerifiedEmail(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_verified_email = 1, is_active = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	return err
}

// SetVerifiedMobile marks the user's mobile as verified and activates the
// account.
func (r *Repository) SetVerifiedMobile(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_verified_mobile = 1, is_active = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	return err
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
