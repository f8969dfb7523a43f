package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"filecrate.org/internal/auth"
)

var _ auth.UserStore = (*Store)(nil)

func (s *Store) Create(ctx context.Context, u *auth.User) error {
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, email, username, name, password_hash, verified)
		values ($1, $2, $3, $4, $5, $6)
		returning registered_at
	`, u.ID, strings.ToLower(u.Email), u.Username, u.Name, u.PasswordHash, u.Verified).Scan(&u.RegisteredAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, username, name, password_hash, verified, registered_at
		from users where id = $1
	`, id))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, username, name, password_hash, verified, registered_at
		from users where email = $1
	`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) SetVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update users set verified = true where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Name, &u.PasswordHash, &u.Verified, &u.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
