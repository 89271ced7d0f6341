package schema

import "fmt"

// Kind classifies a field by how its value is fetched.
type Kind int

const (
	// Scalar is a plain column on the model's own table.
	Scalar Kind = iota

	// ToOne yields at most one related record (forward FK, one-to-one, reverse one-to-one).
	ToOne

	// ToMany yields a collection of related records (reverse FK, many-to-many).
	ToMany
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case ToOne:
		return "to_one"
	case ToMany:
		return "to_many"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ColumnType is the storage type of a scalar column.
type ColumnType string

const (
	TypeInt    ColumnType = "int"
	TypeString ColumnType = "string"
	TypeBool   ColumnType = "bool"
)

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeInt, TypeString, TypeBool:
		return true
	}
	return false
}

// LinkKind describes how a relation is stored.
type LinkKind int

const (
	// LinkForeignKey: this model's table holds LocalColumn referencing
	// the target's RemoteColumn (its primary key).
	LinkForeignKey LinkKind = iota

	// LinkReverse: the target's table holds RemoteColumn referencing this
	// model's LocalColumn (its primary key).
	LinkReverse

	// LinkThrough: a separate table joins the two primary keys.
	LinkThrough
)

// Link carries the column-level details of a relation.
type Link struct {
	Kind LinkKind

	// LocalColumn is the column on this model's table.
	LocalColumn string

	// RemoteColumn is the column on the target model's table.
	RemoteColumn string

	// Through is the join table for LinkThrough.
	Through string

	// ThroughLocal references this model's primary key in Through.
	ThroughLocal string

	// ThroughRemote references the target's primary key in Through.
	ThroughRemote string
}

// Field is the descriptor returned by Resolve.
type Field struct {
	// Name is the accessor name (e.g. "location", "pizza_set", "name").
	Name string

	// Model is the owning model name.
	Model string

	Kind Kind

	// Type is set for scalars.
	Type ColumnType

	// Column is the scalar's column name.
	Column string

	// Nullable marks a scalar column that accepts NULL.
	Nullable bool

	// Unique marks a scalar column with a UNIQUE constraint.
	Unique bool

	// Target is the related model name for relations.
	Target string

	// Link is set for relations.
	Link Link

	// Reverse is true when the field was derived from another model's
	// forward relation.
	Reverse bool
}

// IsRelation reports whether f is a to-one or to-many relation.
func (f Field) IsRelation() bool {
	return f.Kind != Scalar
}
