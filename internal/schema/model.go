package schema

import (
	"fmt"
	"strings"
)

// PrimaryKey is the name of every model's integer primary key column.
const PrimaryKey = "id"

// RelationType is the declared type of a forward relation.
type RelationType string

const (
	ForeignKey RelationType = "foreign_key"
	OneToOne   RelationType = "one_to_one"
	ManyToMany RelationType = "many_to_many"
)

// NoReverse as a RelatedName suppresses the derived reverse accessor.
const NoReverse = "+"

// RelationSpec declares a forward relation on a model.
type RelationSpec struct {
	Name   string
	Type   RelationType
	Target string

	// RelatedName overrides the reverse accessor name on Target.
	RelatedName string

	// Through overrides the many-to-many join table name.
	Through string

	// Nullable allows a NULL foreign key.
	Nullable bool
}

// Model is a table with an integer primary key, scalar columns and relations.
type Model struct {
	Name  string
	Table string

	fields    []Field
	index     map[string]int
	relations []RelationSpec
}

// NewModel creates a model with its primary key column.
// If table is empty it defaults to the lowercased model name.
func NewModel(name, table string) *Model {
	if table == "" {
		table = strings.ToLower(name)
	}
	m := &Model{
		Name:  name,
		Table: table,
		index: make(map[string]int),
	}
	_ = m.addField(Field{
		Name:   PrimaryKey,
		Model:  name,
		Kind:   Scalar,
		Type:   TypeInt,
		Column: PrimaryKey,
	})
	return m
}

// AddScalar declares a non-null scalar column.
func (m *Model) AddScalar(name string, t ColumnType) error {
	return m.AddColumn(Field{Name: name, Type: t})
}

// AddColumn declares a scalar column from a partially filled Field.
// Model, Kind and Column are filled in.
func (m *Model) AddColumn(f Field) error {
	if !f.Type.Valid() {
		return fmt.Errorf("model %s: field %q: unknown column type %q", m.Name, f.Name, f.Type)
	}
	f.Model = m.Name
	f.Kind = Scalar
	if f.Column == "" {
		f.Column = f.Name
	}
	return m.addField(f)
}

// AddRelation declares a forward relation. The reverse accessor is added to
// the target model by Registry.Finalize.
func (m *Model) AddRelation(spec RelationSpec) error {
	if spec.Target == "" {
		return fmt.Errorf("model %s: relation %q: target is required", m.Name, spec.Name)
	}

	switch spec.Type {
	case ForeignKey, OneToOne:
		column := spec.Name + "_id"
		if err := m.addField(Field{
			Name:     column,
			Model:    m.Name,
			Kind:     Scalar,
			Type:     TypeInt,
			Column:   column,
			Nullable: spec.Nullable,
			Unique:   spec.Type == OneToOne,
		}); err != nil {
			return err
		}
		if err := m.addField(Field{
			Name:   spec.Name,
			Model:  m.Name,
			Kind:   ToOne,
			Target: spec.Target,
			Link: Link{
				Kind:         LinkForeignKey,
				LocalColumn:  column,
				RemoteColumn: PrimaryKey,
			},
		}); err != nil {
			return err
		}

	case ManyToMany:
		local, remote := throughColumns(m.Name, spec.Target)
		through := spec.Through
		if through == "" {
			through = m.Table + "_" + spec.Name
		}
		if err := m.addField(Field{
			Name:   spec.Name,
			Model:  m.Name,
			Kind:   ToMany,
			Target: spec.Target,
			Link: Link{
				Kind:          LinkThrough,
				LocalColumn:   PrimaryKey,
				RemoteColumn:  PrimaryKey,
				Through:       through,
				ThroughLocal:  local,
				ThroughRemote: remote,
			},
		}); err != nil {
			return err
		}

	default:
		return fmt.Errorf("model %s: relation %q: unknown relation type %q", m.Name, spec.Name, spec.Type)
	}

	m.relations = append(m.relations, spec)
	return nil
}

// throughColumns names the join table columns. Self-referential relations
// get from_/to_ prefixes so the columns stay distinct.
func throughColumns(model, target string) (string, string) {
	local := strings.ToLower(model) + "_id"
	remote := strings.ToLower(target) + "_id"
	if local == remote {
		return "from_" + local, "to_" + remote
	}
	return local, remote
}

func (m *Model) addField(f Field) error {
	if _, exists := m.index[f.Name]; exists {
		return fmt.Errorf("model %s: duplicate field %q", m.Name, f.Name)
	}
	m.index[f.Name] = len(m.fields)
	m.fields = append(m.fields, f)
	return nil
}

// Field looks up a field by accessor name.
func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// Fields returns all fields in declaration order.
func (m *Model) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// Scalars returns the scalar fields in declaration order.
func (m *Model) Scalars() []Field {
	var out []Field
	for _, f := range m.fields {
		if f.Kind == Scalar {
			out = append(out, f)
		}
	}
	return out
}

// Relations returns the to-one and to-many fields in declaration order.
func (m *Model) Relations() []Field {
	var out []Field
	for _, f := range m.fields {
		if f.IsRelation() {
			out = append(out, f)
		}
	}
	return out
}

// ForwardRelations returns the declared relation specs.
func (m *Model) ForwardRelations() []RelationSpec {
	out := make([]RelationSpec, len(m.relations))
	copy(out, m.relations)
	return out
}
