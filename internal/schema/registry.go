package schema

import (
	"fmt"
	"strings"
)

// Resolver resolves a field name on a model to its descriptor.
// A miss is reported with *UnknownFieldError or *UnknownModelError.
type Resolver interface {
	Resolve(model, field string) (Field, error)
}

// ThroughTable describes a many-to-many join table.
type ThroughTable struct {
	Name        string
	LeftColumn  string
	LeftTable   string
	RightColumn string
	RightTable  string
}

// Registry holds every model of an application.
type Registry struct {
	models    map[string]*Model
	order     []string
	through   []ThroughTable
	finalized bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Add registers a model. Must be called before Finalize.
func (r *Registry) Add(m *Model) error {
	if r.finalized {
		return fmt.Errorf("registry already finalized: cannot add model %s", m.Name)
	}
	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("duplicate model %q", m.Name)
	}
	r.models[m.Name] = m
	r.order = append(r.order, m.Name)
	return nil
}

// Finalize checks relation targets and derives the reverse accessors.
// It is idempotent.
func (r *Registry) Finalize() error {
	if r.finalized {
		return nil
	}

	for _, name := range r.order {
		m := r.models[name]
		for _, spec := range m.relations {
			target, ok := r.models[spec.Target]
			if !ok {
				return fmt.Errorf("model %s: relation %q: %w", m.Name, spec.Name, &UnknownModelError{Model: spec.Target})
			}
			forward, _ := m.Field(spec.Name)

			if spec.Type == ManyToMany {
				r.through = append(r.through, ThroughTable{
					Name:        forward.Link.Through,
					LeftColumn:  forward.Link.ThroughLocal,
					LeftTable:   m.Table,
					RightColumn: forward.Link.ThroughRemote,
					RightTable:  target.Table,
				})
			}

			if spec.RelatedName == NoReverse {
				continue
			}
			if err := target.addField(reverseField(m, spec, forward)); err != nil {
				return fmt.Errorf("reverse of %s.%s: %w", m.Name, spec.Name, err)
			}
		}
	}

	r.finalized = true
	return nil
}

// reverseField derives the accessor added to the target of a forward relation.
func reverseField(owner *Model, spec RelationSpec, forward Field) Field {
	name := spec.RelatedName
	lower := strings.ToLower(owner.Name)

	f := Field{
		Model:   spec.Target,
		Target:  owner.Name,
		Reverse: true,
	}

	switch spec.Type {
	case OneToOne:
		if name == "" {
			name = lower
		}
		f.Kind = ToOne
		f.Link = Link{
			Kind:         LinkReverse,
			LocalColumn:  PrimaryKey,
			RemoteColumn: forward.Link.LocalColumn,
		}
	case ForeignKey:
		if name == "" {
			name = lower + "_set"
		}
		f.Kind = ToMany
		f.Link = Link{
			Kind:         LinkReverse,
			LocalColumn:  PrimaryKey,
			RemoteColumn: forward.Link.LocalColumn,
		}
	case ManyToMany:
		if name == "" {
			name = lower + "_set"
		}
		f.Kind = ToMany
		f.Link = Link{
			Kind:          LinkThrough,
			LocalColumn:   PrimaryKey,
			RemoteColumn:  PrimaryKey,
			Through:       forward.Link.Through,
			ThroughLocal:  forward.Link.ThroughRemote,
			ThroughRemote: forward.Link.ThroughLocal,
		}
	}

	f.Name = name
	return f
}

// Model returns a registered model.
func (r *Registry) Model(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, &UnknownModelError{Model: name}
	}
	return m, nil
}

// Models returns every model in registration order.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// ThroughTables returns the many-to-many join tables. Only valid after Finalize.
func (r *Registry) ThroughTables() []ThroughTable {
	out := make([]ThroughTable, len(r.through))
	copy(out, r.through)
	return out
}

// Resolve implements Resolver.
func (r *Registry) Resolve(model, field string) (Field, error) {
	m, ok := r.models[model]
	if !ok {
		return Field{}, &UnknownModelError{Model: model}
	}
	f, ok := m.Field(field)
	if !ok {
		return Field{}, &UnknownFieldError{Model: model, Field: field}
	}
	return f, nil
}
