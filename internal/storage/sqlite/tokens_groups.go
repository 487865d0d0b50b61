package sqlite

import (
	"context"
	"database/sql"
	"strings"
)

func token(ctx context.Context, q querier, tok string) (string, bool, error) {
	var user string
	err := q.QueryRowContext(ctx, `SELECT user_id FROM tokens WHERE token = ?`, tok).Scan(&user)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if user == "" {
		return "", false, nil
	}
	return user, true, nil
}

func groups(ctx context.Context, q querier, user string) ([]string, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT groups FROM groups WHERE user_id = ?`, user).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return splitTrimComma(raw), nil
}

func splitTrimComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setToken(ctx context.Context, tx *sql.Tx, tok, user string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tokens (token, user_id) VALUES (?, ?)
		ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id
	`, tok, user)
	return err
}

func deleteToken(ctx context.Context, tx *sql.Tx, tok string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, tok)
	return err
}

func setGroups(ctx context.Context, tx *sql.Tx, user string, groups []string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO groups (user_id, groups) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET groups = excluded.groups
	`, user, strings.Join(groups, ","))
	return err
}

// ListTokens and ListGroups back the admin API's read endpoints.

func (s *Store) ListTokens(ctx context.Context) (map[string]string, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT token, user_id FROM tokens`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var tok, user string
		if err := rows.Scan(&tok, &user); err != nil {
			return nil, err
		}
		out[tok] = user
	}
	return out, rows.Err()
}

func (s *Store) ListGroups(ctx context.Context) (map[string][]string, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT user_id, groups FROM groups`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var user, raw string
		if err := rows.Scan(&user, &raw); err != nil {
			return nil, err
		}
		out[user] = splitTrimComma(raw)
	}
	return out, rows.Err()
}
