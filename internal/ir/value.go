package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a sealed interface representing a column value.
// Only Null, String, Int and Bool implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents SQL NULL.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a TEXT value.
type String string

func (String) irValue() {}

// Int represents an INTEGER value.
// Always int64, never float64.
type Int int64

func (Int) irValue() {}

// Bool represents a boolean value (stored as INTEGER 0/1 in SQLite).
type Bool bool

func (Bool) irValue() {}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// FromSQL converts a value scanned by database/sql into a Value.
// Floats are rejected.
func FromSQL(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case int64:
		return Int(val), nil
	case int:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case []byte:
		return String(string(val)), nil
	case float64:
		return nil, fmt.Errorf("floats not allowed in column values: %v", val)
	default:
		return nil, fmt.Errorf("unsupported column value type: %T", v)
	}
}

// FromAny converts a decoded YAML or JSON scalar into a Value.
// Integral floats (as produced by encoding/json) are accepted; fractional
// ones are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats not allowed in column values: %s", val)
		}
		return Int(n), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats not allowed in column values: %v", val)
		}
		return Int(int64(val)), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// ToParam converts a Value into a database/sql parameter.
func ToParam(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// Format renders a Value for human-readable output.
func Format(v Value) string {
	switch val := v.(type) {
	case String:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		return "null"
	}
}
