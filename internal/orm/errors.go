package orm

import (
	"errors"
	"fmt"
)

// NotFoundError is returned by Get when no record matches.
type NotFoundError struct {
	Model string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d does not exist", e.Model, e.ID)
}

// IsNotFound checks if an error is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
