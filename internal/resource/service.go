package resource

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"filecrate.org/internal/auth"
	"filecrate.org/internal/blob"
	"filecrate.org/internal/ids"
	"filecrate.org/internal/obs"
)

// CreateFileInput carries one upload.
type CreateFileInput struct {
	Name        string
	ContentType string
	Size        int64
	Protected   bool
	Content     io.Reader
}

// CreateLinkInput carries one link.
type CreateLinkInput struct {
	Label       string
	URL         string
	Description string
	Protected   bool
}

// FormFieldInput carries one question of a new form.
type FormFieldInput struct {
	Label        string
	Description  string
	Required     bool
	Kind         string
	Options      string
	NumberBounds string
	TextBounds   string
}

// CreateFormInput carries one form definition. Field positions follow input
// order.
type CreateFormInput struct {
	Label       string
	Description string
	Protected   bool
	Fields      []FormFieldInput
}

// Service owns the lifecycle of protected resources: validation, ownership
// provisioning, permission gating and the blob/relational commit ordering.
type Service struct {
	store Store
	roles auth.RoleStore
	blobs blob.Store
	now   func() time.Time

	bypassRoles []string
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithBypassRoles overrides the administrative roles that skip listing
// checks.
func WithBypassRoles(names ...string) Option {
	return func(s *Service) { s.bypassRoles = names }
}

// NewService constructs the resource service.
func NewService(store Store, roles auth.RoleStore, blobs blob.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		roles:       roles,
		blobs:       blobs,
		now:         time.Now,
		bypassRoles: []string{auth.RoleAdmin, auth.RoleSuperAdmin},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateFile validates and stores one upload for ownerID, provisioning the
// ownership role and permission in the same transaction.
func (s *Service) CreateFile(ctx context.Context, ownerID string, in CreateFileInput) (*File, error) {
	files, err := s.CreateFiles(ctx, ownerID, []CreateFileInput{in})
	if err != nil {
		return nil, err
	}
	return files[0], nil
}

// CreateFiles stores a batch of uploads atomically: every record, role and
// permission commits together or not at all. Validation runs up front so a
// bad item aborts before any write. Blob writes happen inside the relational
// transaction's stage hook, before commit; a blob failure rolls the whole
// batch back (already-written blobs of the batch are acceptable orphans,
// orphaned grants are not).
func (s *Service) CreateFiles(ctx context.Context, ownerID string, ins []CreateFileInput) ([]*File, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalid)
	}
	if len(ins) == 0 {
		return nil, fmt.Errorf("%w: no files given", ErrInvalid)
	}

	now := s.now().UTC()
	grants := make([]FileGrant, 0, len(ins))
	for _, in := range ins {
		if err := validateFileInput(in.Name, in.ContentType, in.Size); err != nil {
			return nil, err
		}
		f := &File{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			Name:        in.Name,
			ContentType: in.ContentType,
			Size:        in.Size,
			Protected:   in.Protected,
			CreatedAt:   now,
		}
		grant, err := auth.ProvisionOwnership(ownerID, auth.ResourceFile, f.ID.String())
		if err != nil {
			return nil, err
		}
		grants = append(grants, FileGrant{File: f, Grant: grant})
	}

	err := s.store.CreateFiles(ctx, grants, func(ctx context.Context) error {
		for i, g := range grants {
			n, err := s.blobs.Write(ctx, g.File.ID.String(), ins[i].Content)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrStorage, err)
			}
			obs.AddBlobBytesWritten(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	files := make([]*File, len(grants))
	for i, g := range grants {
		files[i] = g.File
	}
	return files, nil
}

// OpenFile returns a file's metadata and a reader over its content.
// Existence is checked before authorization, so a missing file reports
// not-found even to strangers; a protected file then requires a read or
// read-write grant on exactly this instance.
func (s *Service) OpenFile(ctx context.Context, actorID string, id uuid.UUID) (*File, io.ReadCloser, error) {
	f, err := s.store.FindFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if f.Protected {
		if err := s.requireInstanceAccess(ctx, actorID, auth.ResourceFile, f.ID.String(), auth.ActionRead, auth.ActionReadWrite); err != nil {
			return nil, nil, err
		}
	}
	rc, err := s.blobs.Open(ctx, f.ID.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return f, rc, nil
}

// ListFiles is an administrative listing: callers pass either a bypass role
// or a global admin read-write grant.
func (s *Service) ListFiles(ctx context.Context, actorID string, offset, limit int) ([]*File, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListFiles(ctx, offset, normalizeLimit(limit))
}

// DeleteFile removes a file's record and content. The blob delete is staged
// before the relational commit so a storage failure keeps the record.
func (s *Service) DeleteFile(ctx context.Context, actorID string, id uuid.UUID) error {
	f, err := s.store.FindFile(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireInstanceAccess(ctx, actorID, auth.ResourceFile, f.ID.String(), auth.ActionReadWrite); err != nil {
		return err
	}
	return s.store.DeleteFile(ctx, id, func(ctx context.Context) error {
		if err := s.blobs.Delete(ctx, f.ID.String()); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return nil
	})
}

// CreateLink stores one link with its ownership grant.
func (s *Service) CreateLink(ctx context.Context, ownerID string, in CreateLinkInput) (*Link, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalid)
	}
	if err := validateLinkInput(in.Label, in.URL); err != nil {
		return nil, err
	}
	l := &Link{
		ID:          ids.New(),
		OwnerID:     ownerID,
		Label:       in.Label,
		URL:         in.URL,
		Description: in.Description,
		Protected:   in.Protected,
		CreatedAt:   s.now().UTC(),
	}
	grant, err := auth.ProvisionOwnership(ownerID, auth.ResourceLink, l.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateLink(ctx, LinkGrant{Link: l, Grant: grant}); err != nil {
		return nil, err
	}
	return l, nil
}

// GetLink loads one link, gating protected links exactly like files.
func (s *Service) GetLink(ctx context.Context, actorID, id string) (*Link, error) {
	l, err := s.store.FindLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Protected {
		if err := s.requireInstanceAccess(ctx, actorID, auth.ResourceLink, l.ID, auth.ActionRead, auth.ActionReadWrite); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// ListLinks is an administrative listing.
func (s *Service) ListLinks(ctx context.Context, actorID string, offset, limit int) ([]*Link, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListLinks(ctx, offset, normalizeLimit(limit))
}

// DeleteLink removes one link after a read-write check on the instance.
func (s *Service) DeleteLink(ctx context.Context, actorID, id string) error {
	l, err := s.store.FindLink(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireInstanceAccess(ctx, actorID, auth.ResourceLink, l.ID, auth.ActionReadWrite); err != nil {
		return err
	}
	return s.store.DeleteLink(ctx, id)
}

// CreateForm stores one form definition with its ownership grant. Form and
// field rows commit together.
func (s *Service) CreateForm(ctx context.Context, ownerID string, in CreateFormInput) (*Form, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalid)
	}
	f := &Form{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Label:       in.Label,
		Description: in.Description,
		Protected:   in.Protected,
		CreatedAt:   s.now().UTC(),
	}
	f.Fields = make([]FormField, 0, len(in.Fields))
	for i, fi := range in.Fields {
		f.Fields = append(f.Fields, FormField{
			ID:           uuid.New(),
			FormID:       f.ID,
			Label:        fi.Label,
			Description:  fi.Description,
			Position:     i,
			Required:     fi.Required,
			Kind:         fi.Kind,
			Options:      fi.Options,
			NumberBounds: fi.NumberBounds,
			TextBounds:   fi.TextBounds,
		})
	}
	if err := validateFormInput(f.Label, f.Fields); err != nil {
		return nil, err
	}
	grant, err := auth.ProvisionOwnership(ownerID, auth.ResourceForm, f.ID.String())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateForm(ctx, FormGrant{Form: f, Grant: grant}); err != nil {
		return nil, err
	}
	return f, nil
}

// GetForm loads one form with its fields, gating protected forms exactly
// like files.
func (s *Service) GetForm(ctx context.Context, actorID string, id uuid.UUID) (*Form, error) {
	f, err := s.store.FindForm(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Protected {
		if err := s.requireInstanceAccess(ctx, actorID, auth.ResourceForm, f.ID.String(), auth.ActionRead, auth.ActionReadWrite); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ListForms is an administrative listing.
func (s *Service) ListForms(ctx context.Context, actorID string, offset, limit int) ([]*Form, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListForms(ctx, offset, normalizeLimit(limit))
}

// DeleteForm removes one form and its fields after a read-write check on the
// instance.
func (s *Service) DeleteForm(ctx context.Context, actorID string, id uuid.UUID) error {
	f, err := s.store.FindForm(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireInstanceAccess(ctx, actorID, auth.ResourceForm, f.ID.String(), auth.ActionReadWrite); err != nil {
		return err
	}
	return s.store.DeleteForm(ctx, id)
}

// requireInstanceAccess demands any of the given actions scoped to exactly
// this resource instance. Each acceptable action is its own requirement and
// the check combines them in either mode.
func (s *Service) requireInstanceAccess(ctx context.Context, actorID, resource, resourceID string, actions ...string) error {
	roles, err := s.actorRoles(ctx, actorID)
	if err != nil {
		return err
	}
	reqs := make([]auth.Requirement, 0, len(actions))
	for _, action := range actions {
		reqs = append(reqs, auth.Instance(resource, resourceID, action))
	}
	err = auth.NewChecker(roles, reqs, auth.WithMode(auth.ModeEither)).Check()
	obs.ObservePermissionCheck(resource, err == nil)
	return err
}

// requireAdmin demands a bypass role or a global admin read-write grant.
func (s *Service) requireAdmin(ctx context.Context, actorID string) error {
	roles, err := s.actorRoles(ctx, actorID)
	if err != nil {
		return err
	}
	err = auth.NewChecker(roles,
		[]auth.Requirement{auth.Global(auth.ResourceAdmin, auth.ActionReadWrite)},
		auth.WithBypassRoles(s.bypassRoles...),
	).Check()
	obs.ObservePermissionCheck(auth.ResourceAdmin, err == nil)
	return err
}

func (s *Service) actorRoles(ctx context.Context, actorID string) ([]auth.Role, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("%w: authenticated user required", auth.ErrForbidden)
	}
	return s.roles.RolesForUser(ctx, actorID)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 100
	}
	return limit
}
