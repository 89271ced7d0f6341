package schema

import (
	"errors"
	"fmt"
)

// UnknownFieldError reports a field name that does not exist on a model.
type UnknownFieldError struct {
	Model string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q on model %s", e.Field, e.Model)
}

// UnknownModelError reports a model name that is not registered.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Model)
}

// IsUnknownField returns true if err is (or wraps) an UnknownFieldError.
func IsUnknownField(err error) bool {
	var ufe *UnknownFieldError
	return errors.As(err, &ufe)
}

// IsUnknownModel returns true if err is (or wraps) an UnknownModelError.
func IsUnknownModel(err error) bool {
	var ume *UnknownModelError
	return errors.As(err, &ume)
}
