package pg

import (
	"context"
	"database/sql"
	"errors"

	"filecrate.org/internal/session"
)

var _ session.Store = (*Store)(nil)

func (s *Store) CreateLogin(ctx context.Context, ls *session.LoginSession) error {
	return s.db.QueryRowContext(ctx, `
		insert into login_sessions (id, user_id, expires_at, expired, confirmed)
		values ($1, $2, $3, $4, $5)
		returning created_at
	`, ls.ID, ls.UserID, ls.ExpiresAt, ls.Expired, ls.Confirmed).Scan(&ls.CreatedAt)
}

func (s *Store) FindLogin(ctx context.Context, id string) (*session.LoginSession, error) {
	var ls session.LoginSession
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, expires_at, expired, confirmed, created_at
		from login_sessions where id = $1
	`, id).Scan(&ls.ID, &ls.UserID, &ls.ExpiresAt, &ls.Expired, &ls.Confirmed, &ls.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

func (s *Store) ExpireLogin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update login_sessions set expired = true where id = $1
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) ConfirmLogin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update login_sessions set confirmed = true where id = $1
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *Store) CreateChallenge(ctx context.Context, c *session.AuthChallenge) error {
	return s.db.QueryRowContext(ctx, `
		insert into auth_challenges (id, token, user_id, login_id, tries, max_tries, expires_at, verified)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at
	`, c.ID, c.Token, c.UserID, c.LoginID, c.Tries, c.MaxTries, c.ExpiresAt, c.Verified).Scan(&c.CreatedAt)
}

// MutateChallenge runs fn against the row held under SELECT ... FOR UPDATE so
// concurrent submissions of the same challenge serialize and try counts are
// never lost. The row is rewritten only when fn reports a change.
func (s *Store) MutateChallenge(ctx context.Context, id string, fn func(*session.AuthChallenge) (bool, error)) (*session.AuthChallenge, error) {
	var c session.AuthChallenge
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			select id, token, user_id, login_id, tries, max_tries, expires_at, verified, created_at
			from auth_challenges where id = $1
			for update
		`, id).Scan(&c.ID, &c.Token, &c.UserID, &c.LoginID, &c.Tries, &c.MaxTries, &c.ExpiresAt, &c.Verified, &c.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}
		changed, err := fn(&c)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			update auth_challenges set tries = $2, verified = $3 where id = $1
		`, c.ID, c.Tries, c.Verified)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateVerification(ctx context.Context, v *session.VerificationSession) error {
	return s.db.QueryRowContext(ctx, `
		insert into verification_sessions (id, token, user_id, tries, max_tries, expires_at, verified)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at
	`, v.ID, v.Token, v.UserID, v.Tries, v.MaxTries, v.ExpiresAt, v.Verified).Scan(&v.CreatedAt)
}

// MutateVerification mirrors MutateChallenge for the account-verification
// family.
func (s *Store) MutateVerification(ctx context.Context, id string, fn func(*session.VerificationSession) (bool, error)) (*session.VerificationSession, error) {
	var v session.VerificationSession
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			select id, token, user_id, tries, max_tries, expires_at, verified, created_at
			from verification_sessions where id = $1
			for update
		`, id).Scan(&v.ID, &v.Token, &v.UserID, &v.Tries, &v.MaxTries, &v.ExpiresAt, &v.Verified, &v.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}
		changed, err := fn(&v)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			update verification_sessions set tries = $2, verified = $3 where id = $1
		`, v.ID, v.Tries, v.Verified)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}
