package pg

import (
	"context"
	"database/sql"

	"filecrate.org/internal/auth"
)

var _ auth.RoleStore = (*Store)(nil)

// CreateRoleTx stages a role, its members and its permissions inside an open
// transaction. Resource creation uses it so ownership grants commit with the
// resource row.
func CreateRoleTx(ctx context.Context, tx *sql.Tx, role *auth.Role, memberIDs []string) error {
	if _, err := tx.ExecContext(ctx, `
		insert into roles (id, name) values ($1, $2)
	`, role.ID, nullIfEmpty(role.Name)); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_members (role_id, user_id) values ($1, $2)
		`, role.ID, userID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return auth.ErrNotFound
			}
			return err
		}
	}
	for _, perm := range role.Permissions {
		if err := grantTx(ctx, tx, &perm); err != nil {
			return err
		}
	}
	return nil
}

func grantTx(ctx context.Context, tx *sql.Tx, perm *auth.Permission) error {
	if _, err := tx.ExecContext(ctx, `
		insert into permissions (id, role_id, resource, action, resource_id)
		values ($1, $2, $3, $4, $5)
	`, perm.ID, perm.RoleID, perm.Resource, perm.Action, nullIfEmpty(perm.ResourceID)); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) CreateRole(ctx context.Context, role *auth.Role, memberIDs []string) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		return CreateRoleTx(ctx, tx, role, memberIDs)
	})
}

func (s *Store) FindRole(ctx context.Context, id string) (*auth.Role, error) {
	return s.findRole(ctx, `where r.id = $1`, id)
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	return s.findRole(ctx, `where r.name = $1`, name)
}

func (s *Store) findRole(ctx context.Context, filter string, arg any) (*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.created_at,
		       p.id, p.resource, p.action, p.resource_id, p.created_at
		from roles r
		left join permissions p on p.role_id = r.id
	`+filter, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, auth.ErrNotFound
	}
	role := roles[0]
	return &role, nil
}

func (s *Store) AddRoleMember(ctx context.Context, roleID, userID string) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into role_members (role_id, user_id) values ($1, $2)
		on conflict do nothing
	`, roleID, userID); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) Grant(ctx context.Context, perm *auth.Permission) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		return grantTx(ctx, tx, perm)
	})
}

// RolesForUser loads every role the user belongs to with its permissions
// preloaded, ready for a Checker.
func (s *Store) RolesForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.created_at,
		       p.id, p.resource, p.action, p.resource_id, p.created_at
		from role_members m
		join roles r on r.id = m.role_id
		left join permissions p on p.role_id = r.id
		where m.user_id = $1
		order by r.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows *sql.Rows) ([]auth.Role, error) {
	var (
		result []auth.Role
		index  = make(map[string]int)
	)
	for rows.Next() {
		var (
			role       auth.Role
			roleName   sql.NullString
			permID     sql.NullString
			permRes    sql.NullString
			permAction sql.NullString
			permScope  sql.NullString
			permAt     sql.NullTime
		)
		if err := rows.Scan(&role.ID, &roleName, &role.CreatedAt,
			&permID, &permRes, &permAction, &permScope, &permAt); err != nil {
			return nil, err
		}
		role.Name = roleName.String

		i, ok := index[role.ID]
		if !ok {
			i = len(result)
			index[role.ID] = i
			result = append(result, role)
		}
		if permID.Valid {
			perm := auth.Permission{
				ID:         permID.String,
				RoleID:     role.ID,
				Resource:   permRes.String,
				Action:     permAction.String,
				ResourceID: permScope.String,
				CreatedAt:  permAt.Time,
			}
			result[i].Permissions = append(result[i].Permissions, perm)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
