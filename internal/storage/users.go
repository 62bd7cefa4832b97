package storage

import (
	"context"
	"fmt"
	"strings"
)

// GetOrCreateUser returns the id of the user with the given tailnet login,
// creating the user on first sight. An empty displayName keeps the stored
// one.
func (db *DB) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return 0, fmt.Errorf("resolving user: empty login")
	}

	var id int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (login, display_name)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
		RETURNING id
	`, login, displayName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving user %s: %w", login, err)
	}
	return id, nil
}
