package resource

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("resource: not found")
	ErrInvalid  = errors.New("resource: invalid input")
	// ErrStorage wraps blob-backend failures. Any pending relational change
	// is rolled back before this surfaces.
	ErrStorage = errors.New("resource: storage failure")
)

// MaxFileSize bounds uploads at 5 MiB.
const MaxFileSize = 5 << 20

// File is an uploaded file's metadata. Content bytes live in the blob store
// under the file id.
type File struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Protected   bool      `json:"protected"`
	CreatedAt   time.Time `json:"created_at"`
}

// Link is a stored URL shared by its owner.
type Link struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Label       string    `json:"label"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Protected   bool      `json:"protected"`
	CreatedAt   time.Time `json:"created_at"`
}

// Field kinds a form may carry. Select kinds require a non-empty option list.
const (
	FieldBoolean     = "boolean"
	FieldNumerical   = "numerical"
	FieldText        = "text"
	FieldSelect      = "select"
	FieldMultiselect = "multiselect"
)

// Form is an owner-defined questionnaire. Its fields are part of the form
// definition and share its lifecycle; answers are collected elsewhere.
type Form struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	Protected   bool        `json:"protected"`
	Fields      []FormField `json:"fields"`
	CreatedAt   time.Time   `json:"created_at"`
}

// FormField is one question of a form. Options holds the comma-separated
// choices for select kinds; NumberBounds and TextBounds carry "min:max"
// constraints for numerical and text kinds.
type FormField struct {
	ID           uuid.UUID `json:"id"`
	FormID       uuid.UUID `json:"form_id"`
	Label        string    `json:"label"`
	Description  string    `json:"description,omitempty"`
	Position     int       `json:"position"`
	Required     bool      `json:"required"`
	Kind         string    `json:"kind"`
	Options      string    `json:"options,omitempty"`
	NumberBounds string    `json:"number_bounds,omitempty"`
	TextBounds   string    `json:"text_bounds,omitempty"`
}

func validateFileInput(name, contentType string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: file size is required", ErrInvalid)
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: file size exceeds %d byte limit", ErrInvalid, MaxFileSize)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: file name is required", ErrInvalid)
	}
	if strings.TrimSpace(contentType) == "" {
		return fmt.Errorf("%w: file content type is required", ErrInvalid)
	}
	return nil
}

func validateLinkInput(label, rawURL string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: link label is required", ErrInvalid)
	}
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: link url is required", ErrInvalid)
	}
	return nil
}

func validateFormInput(label string, fields []FormField) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: form label is required", ErrInvalid)
	}
	for i, f := range fields {
		if strings.TrimSpace(f.Label) == "" {
			return fmt.Errorf("%w: field %d label is required", ErrInvalid, i)
		}
		switch f.Kind {
		case FieldBoolean, FieldNumerical, FieldText:
		case FieldSelect, FieldMultiselect:
			if strings.TrimSpace(f.Options) == "" {
				return fmt.Errorf("%w: field %q needs options", ErrInvalid, f.Label)
			}
		default:
			return fmt.Errorf("%w: field %q has unknown kind %q", ErrInvalid, f.Label, f.Kind)
		}
	}
	return nil
}
