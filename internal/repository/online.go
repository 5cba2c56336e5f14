// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
)

// AddOnlineUser marks a user as connected. Adding an already-online user is
// not an error; the database row is the serialization point, no in-process
// locking is needed.
func (r *Repository) AddOnlineUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO online_users (user_id) VALUES (?)`, userID)
	return err
}

// DeleteOnlineUser marks a user as disconnected. Idempotent.
func (r *Repository) DeleteOnlineUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM online_users WHERE user_id = ?`, userID)
	return err
}

// ListOnlineUserIDs returns the ids of all currently connected users.
func (r *Repository) ListOnlineUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM online_users ORDER BY user_id`); err != nil {
		return nil, err
	}
	return ids, nil
}
