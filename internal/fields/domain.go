package fields

import (
	"errors"
	"fmt"
	"time"
)

// FieldType enumerates the value kinds a custom field can hold.
type FieldType string

const (
	TypeText   FieldType = "text"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeSelect FieldType = "select"
)

// Definition describes one custom field attached to inventory batches. Values
// themselves live on the batch; definitions only shape the form and search.
type Definition struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Options []string  `json:"options,omitempty"`
	Created time.Time `json:"created,omitempty"`
	Updated time.Time `json:"updated,omitempty"`
}

// DefinitionInput carries fields for creating or updating a definition.
type DefinitionInput struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name" validate:"required"`
	Type    string   `json:"type" validate:"required,oneof=text number date select"`
	Options []string `json:"options"`
	Actor   string   `json:"-"`
}

// ErrNotFound indicates a missing field definition.
var ErrNotFound = errors.New("fields: definition not found")

// ErrDuplicateName indicates a definition name already in use.
var ErrDuplicateName = errors.New("fields: definition name already exists")

// Validate checks the structural rules a definition must satisfy.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("fields: name required")
	}
	switch d.Type {
	case TypeText, TypeNumber, TypeDate:
		return nil
	case TypeSelect:
		if len(d.Options) == 0 {
			return errors.New("fields: select fields need at least one option")
		}
		return nil
	}
	return fmt.Errorf("fields: unknown field type %q", d.Type)
}
