package resource

import (
	"context"

	"github.com/google/uuid"

	"filecrate.org/internal/auth"
)

// FileGrant pairs a file record with the ownership role and permission minted
// for its creator. The store commits all of it as one unit.
type FileGrant struct {
	File  *File
	Grant auth.OwnershipGrant
}

// LinkGrant is the link equivalent of FileGrant.
type LinkGrant struct {
	Link  *Link
	Grant auth.OwnershipGrant
}

// FormGrant is the form equivalent of FileGrant. Field rows commit in the
// same unit as the form and its grant.
type FormGrant struct {
	Form  *Form
	Grant auth.OwnershipGrant
}

// Store persists protected resources together with their ownership grants.
//
// The stage hook runs after the relational rows are written but before the
// transaction commits; returning an error rolls everything back. Services use
// it to sequence blob writes so a storage failure never leaves an orphaned
// role or permission behind.
type Store interface {
	CreateFiles(ctx context.Context, grants []FileGrant, stage func(context.Context) error) error
	FindFile(ctx context.Context, id uuid.UUID) (*File, error)
	ListFiles(ctx context.Context, offset, limit int) ([]*File, error)
	DeleteFile(ctx context.Context, id uuid.UUID, stage func(context.Context) error) error

	CreateLink(ctx context.Context, grant LinkGrant) error
	FindLink(ctx context.Context, id string) (*Link, error)
	ListLinks(ctx context.Context, offset, limit int) ([]*Link, error)
	DeleteLink(ctx context.Context, id string) error

	CreateForm(ctx context.Context, grant FormGrant) error
	FindForm(ctx context.Context, id uuid.UUID) (*Form, error)
	ListForms(ctx context.Context, offset, limit int) ([]*Form, error)
	DeleteForm(ctx context.Context, id uuid.UUID) error
}
