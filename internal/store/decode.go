package store

import (
	"fmt"

	"github.com/roach88/strictfetch/internal/ir"
	"github.com/roach88/strictfetch/internal/schema"
)

// DecodeColumn converts a raw SQLite value for f into an ir.Value.
// Booleans are stored as INTEGER 0/1 and come back as ir.Bool.
func DecodeColumn(f schema.Field, raw any) (ir.Value, error) {
	v, err := ir.FromSQL(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s.%s: %w", f.Model, f.Name, err)
	}
	if f.Type != schema.TypeBool {
		return v, nil
	}

	switch b := v.(type) {
	case ir.Int:
		return ir.Bool(b != 0), nil
	case ir.Bool, ir.Null:
		return v, nil
	default:
		return nil, fmt.Errorf("decode %s.%s: expected bool, got %T", f.Model, f.Name, v)
	}
}
