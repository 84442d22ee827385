package fields

import (
	"context"
	"errors"
	"strings"

	"github.com/stockroom/stockroom/internal/shared"
)

// ErrNotPermitted indicates the acting role cannot manage definitions.
var ErrNotPermitted = errors.New("fields: role not permitted")

// RepositoryPort abstracts definition persistence.
type RepositoryPort interface {
	List(ctx context.Context) ([]Definition, error)
	Get(ctx context.Context, id string) (Definition, error)
	Create(ctx context.Context, d Definition) (Definition, error)
	Update(ctx context.Context, d Definition) (Definition, error)
	Delete(ctx context.Context, id string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages custom field definitions. Reads are open to every role;
// mutation is restricted to roles that manage fields.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns every definition, in creation order.
func (s *Service) List(ctx context.Context) ([]Definition, error) {
	return s.repo.List(ctx)
}

// Save creates or updates one definition.
func (s *Service) Save(ctx context.Context, input DefinitionInput, role shared.Role) (Definition, error) {
	if !role.CanManageFields() {
		return Definition{}, ErrNotPermitted
	}
	def := Definition{
		ID:      input.ID,
		Name:    strings.TrimSpace(input.Name),
		Type:    FieldType(input.Type),
		Options: cleanOptions(input.Options),
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	if def.Type != TypeSelect {
		def.Options = nil
	}

	existing, err := s.repo.List(ctx)
	if err != nil {
		return Definition{}, err
	}
	for _, other := range existing {
		if other.ID != def.ID && strings.EqualFold(other.Name, def.Name) {
			return Definition{}, ErrDuplicateName
		}
	}

	var saved Definition
	action := "fields:create"
	if def.ID == "" {
		saved, err = s.repo.Create(ctx, def)
	} else {
		action = "fields:update"
		saved, err = s.repo.Update(ctx, def)
	}
	if err != nil {
		return Definition{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    input.Actor,
			Role:     role,
			Action:   action,
			Entity:   "field_definition",
			EntityID: saved.ID,
			Meta:     map[string]any{"name": saved.Name, "type": saved.Type},
		})
	}
	return saved, nil
}

// Delete removes a definition. Values already stored on batches keep their
// keys; only the form shape changes.
func (s *Service) Delete(ctx context.Context, id string, role shared.Role, actor string) error {
	if !role.CanManageFields() {
		return ErrNotPermitted
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Role:     role,
			Action:   "fields:delete",
			Entity:   "field_definition",
			EntityID: id,
		})
	}
	return nil
}

func cleanOptions(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
