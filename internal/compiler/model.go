package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/strictfetch/internal/schema"
)

// CompileModel parses a CUE value into a schema.Model.
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: Pizza: { fields: name: string }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.Pizza")))
func CompileModel(v cue.Value) (*schema.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	// Model name comes from the struct label (the path selector)
	var name string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}
	if name == "" {
		return nil, &CompileError{Field: "model", Message: "model must be a labelled struct", Pos: v.Pos()}
	}

	// Parse table (optional)
	var table string
	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		s, err := tableVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		table = s
	}

	m := schema.NewModel(name, table)

	if err := parseFields(v, m); err != nil {
		return nil, err
	}
	if err := parseRelations(v, m); err != nil {
		return nil, err
	}

	return m, nil
}

// parseFields extracts scalar column definitions.
func parseFields(v cue.Value, m *schema.Model) error {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil // fields are optional, id is implicit
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		fieldName := iter.Label()
		if fieldName == schema.PrimaryKey {
			return &CompileError{
				Field:   fmt.Sprintf("model.%s.fields.%s", m.Name, fieldName),
				Message: "primary key is implicit and must not be declared",
				Pos:     iter.Value().Pos(),
			}
		}

		colType, err := extractColumnType(iter.Value())
		if err != nil {
			return err
		}
		if err := m.AddScalar(fieldName, colType); err != nil {
			return &CompileError{
				Field:   fmt.Sprintf("model.%s.fields.%s", m.Name, fieldName),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	return nil
}

// parseRelations extracts forward relation declarations.
func parseRelations(v cue.Value, m *schema.Model) error {
	relVal := v.LookupPath(cue.ParsePath("relations"))
	if !relVal.Exists() {
		return nil
	}

	iter, err := relVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		relName := iter.Label()
		relValue := iter.Value()
		path := fmt.Sprintf("model.%s.relations.%s", m.Name, relName)

		spec := schema.RelationSpec{Name: relName}

		relType, err := requiredString(relValue, "type", path)
		if err != nil {
			return err
		}
		spec.Type = schema.RelationType(relType)

		spec.Target, err = requiredString(relValue, "target", path)
		if err != nil {
			return err
		}

		spec.RelatedName, err = optionalString(relValue, "related_name")
		if err != nil {
			return err
		}
		spec.Through, err = optionalString(relValue, "through")
		if err != nil {
			return err
		}

		if nullVal := relValue.LookupPath(cue.ParsePath("nullable")); nullVal.Exists() {
			b, err := nullVal.Bool()
			if err != nil {
				return formatCUEError(err)
			}
			spec.Nullable = b
		}

		if err := m.AddRelation(spec); err != nil {
			return &CompileError{Field: path, Message: err.Error(), Pos: relValue.Pos()}
		}
	}

	return nil
}

func requiredString(v cue.Value, key, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return "", &CompileError{
			Field:   path + "." + key,
			Message: key + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, key string) (string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// extractColumnType converts a CUE kind to a column type.
// Floats are forbidden.
func extractColumnType(v cue.Value) (schema.ColumnType, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return schema.TypeString, nil
	case cue.IntKind:
		return schema.TypeInt, nil
	case cue.BoolKind:
		return schema.TypeBool, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported column kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
