package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"filecrate.org/internal/auth"
	"filecrate.org/internal/resource"
)

var _ resource.Store = (*Store)(nil)

// CreateFiles writes the file rows and their ownership grants, runs the stage
// hook, and commits only when everything succeeded. A stage failure (typically
// a blob write) rolls the whole batch back.
func (s *Store) CreateFiles(ctx context.Context, grants []resource.FileGrant, stage func(context.Context) error) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		for _, g := range grants {
			if err := tx.QueryRowContext(ctx, `
				insert into files (id, owner_id, name, content_type, size, protected)
				values ($1, $2, $3, $4, $5, $6)
				returning created_at
			`, g.File.ID, g.File.OwnerID, g.File.Name, g.File.ContentType,
				g.File.Size, g.File.Protected).Scan(&g.File.CreatedAt); err != nil {
				return err
			}
			if err := stageGrant(ctx, tx, g.Grant); err != nil {
				return err
			}
		}
		if stage != nil {
			return stage(ctx)
		}
		return nil
	})
}

func stageGrant(ctx context.Context, tx *sql.Tx, grant auth.OwnershipGrant) error {
	return CreateRoleTx(ctx, tx, &grant.Role, []string{grant.MemberID})
}

func (s *Store) FindFile(ctx context.Context, id uuid.UUID) (*resource.File, error) {
	var f resource.File
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, name, content_type, size, protected, created_at
		from files where id = $1
	`, id).Scan(&f.ID, &f.OwnerID, &f.Name, &f.ContentType, &f.Size, &f.Protected, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) ListFiles(ctx context.Context, offset, limit int) ([]*resource.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id, name, content_type, size, protected, created_at
		from files
		order by created_at desc, id
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*resource.File
	for rows.Next() {
		var f resource.File
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ContentType,
			&f.Size, &f.Protected, &f.CreatedAt); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// DeleteFile removes the file row inside a transaction, then runs the stage
// hook before commit so the blob delete can veto the removal. Roles and
// permissions referencing the file id are cleaned up alongside.
func (s *Store) DeleteFile(ctx context.Context, id uuid.UUID, stage func(context.Context) error) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `delete from files where id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return resource.ErrNotFound
		}
		if err := deleteScopedGrants(ctx, tx, auth.ResourceFile, id.String()); err != nil {
			return err
		}
		if stage != nil {
			return stage(ctx)
		}
		return nil
	})
}

func (s *Store) CreateLink(ctx context.Context, grant resource.LinkGrant) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		l := grant.Link
		if err := tx.QueryRowContext(ctx, `
			insert into links (id, owner_id, label, url, description, protected)
			values ($1, $2, $3, $4, $5, $6)
			returning created_at
		`, l.ID, l.OwnerID, l.Label, l.URL, nullIfEmpty(l.Description),
			l.Protected).Scan(&l.CreatedAt); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return resource.ErrInvalid
			}
			return err
		}
		return stageGrant(ctx, tx, grant.Grant)
	})
}

func (s *Store) FindLink(ctx context.Context, id string) (*resource.Link, error) {
	var (
		l    resource.Link
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, label, url, description, protected, created_at
		from links where id = $1
	`, id).Scan(&l.ID, &l.OwnerID, &l.Label, &l.URL, &desc, &l.Protected, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Description = desc.String
	return &l, nil
}

func (s *Store) ListLinks(ctx context.Context, offset, limit int) ([]*resource.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id, label, url, description, protected, created_at
		from links
		order by created_at desc, id
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*resource.Link
	for rows.Next() {
		var (
			l    resource.Link
			desc sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.Label, &l.URL, &desc,
			&l.Protected, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Description = desc.String
		links = append(links, &l)
	}
	return links, rows.Err()
}

func (s *Store) DeleteLink(ctx context.Context, id string) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `delete from links where id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return resource.ErrNotFound
		}
		return deleteScopedGrants(ctx, tx, auth.ResourceLink, id)
	})
}

func (s *Store) CreateForm(ctx context.Context, grant resource.FormGrant) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		f := grant.Form
		if err := tx.QueryRowContext(ctx, `
			insert into forms (id, owner_id, label, description, protected)
			values ($1, $2, $3, $4, $5)
			returning created_at
		`, f.ID, f.OwnerID, f.Label, nullIfEmpty(f.Description),
			f.Protected).Scan(&f.CreatedAt); err != nil {
			return err
		}
		for _, field := range f.Fields {
			if _, err := tx.ExecContext(ctx, `
				insert into form_fields
					(id, form_id, label, description, ordinal, required, kind, options, number_bounds, text_bounds)
				values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, field.ID, field.FormID, field.Label, nullIfEmpty(field.Description),
				field.Position, field.Required, field.Kind, nullIfEmpty(field.Options),
				nullIfEmpty(field.NumberBounds), nullIfEmpty(field.TextBounds)); err != nil {
				return err
			}
		}
		return stageGrant(ctx, tx, grant.Grant)
	})
}

func (s *Store) FindForm(ctx context.Context, id uuid.UUID) (*resource.Form, error) {
	var (
		f    resource.Form
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, label, description, protected, created_at
		from forms where id = $1
	`, id).Scan(&f.ID, &f.OwnerID, &f.Label, &desc, &f.Protected, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resource.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Description = desc.String
	if err := s.loadFormFields(ctx, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) loadFormFields(ctx context.Context, f *resource.Form) error {
	rows, err := s.db.QueryContext(ctx, `
		select id, form_id, label, description, ordinal, required, kind, options, number_bounds, text_bounds
		from form_fields where form_id = $1
		order by ordinal
	`, f.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	f.Fields = []resource.FormField{}
	for rows.Next() {
		var (
			field                   resource.FormField
			desc, opts, nums, texts sql.NullString
		)
		if err := rows.Scan(&field.ID, &field.FormID, &field.Label, &desc,
			&field.Position, &field.Required, &field.Kind, &opts, &nums, &texts); err != nil {
			return err
		}
		field.Description = desc.String
		field.Options = opts.String
		field.NumberBounds = nums.String
		field.TextBounds = texts.String
		f.Fields = append(f.Fields, field)
	}
	return rows.Err()
}

func (s *Store) ListForms(ctx context.Context, offset, limit int) ([]*resource.Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id, label, description, protected, created_at
		from forms
		order by created_at desc, id
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []*resource.Form
	for rows.Next() {
		var (
			f    resource.Form
			desc sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Label, &desc,
			&f.Protected, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Description = desc.String
		forms = append(forms, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, f := range forms {
		if err := s.loadFormFields(ctx, f); err != nil {
			return nil, err
		}
	}
	return forms, nil
}

// DeleteForm drops the form row; field rows go with it through the foreign
// key cascade.
func (s *Store) DeleteForm(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `delete from forms where id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return resource.ErrNotFound
		}
		return deleteScopedGrants(ctx, tx, auth.ResourceForm, id.String())
	})
}

// deleteScopedGrants drops permissions scoped to one resource instance and
// any role left without permissions afterwards. Named roles always keep at
// least their global grants, so only synthesized ownership roles disappear.
func deleteScopedGrants(ctx context.Context, tx *sql.Tx, resourceName, resourceID string) error {
	if _, err := tx.ExecContext(ctx, `
		delete from permissions where resource = $1 and resource_id = $2
	`, resourceName, resourceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		delete from role_members where role_id in (
			select r.id from roles r
			left join permissions p on p.role_id = r.id
			where r.name is null and p.id is null
		)
	`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		delete from roles where name is null and id not in (
			select role_id from permissions
		)
	`)
	return err
}
