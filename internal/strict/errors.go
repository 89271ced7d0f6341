package strict

import (
	"errors"
	"fmt"
)

// Violation codes.
const (
	CodeDeferredFieldAccessed  = "DEFERRED_FIELD_ACCESSED"
	CodeRelationNotFetched     = "RELATION_NOT_FETCHED"
	CodeQueryMutatedAfterFetch = "QUERY_MUTATED_AFTER_FETCH"
)

// ViolationError reports an access that strict mode forbids.
//
// Model and Field name the owning record type and the accessed member; for
// QUERY_MUTATED_AFTER_FETCH they name the relation the child query was
// derived from.
type ViolationError struct {
	Code  string
	Model string
	Field string
}

func (e *ViolationError) Error() string {
	if e.Code == CodeQueryMutatedAfterFetch {
		return fmt.Sprintf("the query for %s.%s was modified after the results were fetched", e.Model, e.Field)
	}
	return fmt.Sprintf("%s.%s must be explicitly fetched", e.Model, e.Field)
}

// DeferredFieldAccessed reports a read of a scalar the query did not load.
func DeferredFieldAccessed(model, field string) error {
	return &ViolationError{Code: CodeDeferredFieldAccessed, Model: model, Field: field}
}

// RelationNotFetched reports a read of a relation that was neither joined
// nor prefetched.
func RelationNotFetched(model, field string) error {
	return &ViolationError{Code: CodeRelationNotFetched, Model: model, Field: field}
}

// QueryMutatedAfterFetch reports a chained operation on a child query whose
// results were already populated.
func QueryMutatedAfterFetch(model, field string) error {
	return &ViolationError{Code: CodeQueryMutatedAfterFetch, Model: model, Field: field}
}

// AsViolation extracts a *ViolationError from err.
func AsViolation(err error) (*ViolationError, bool) {
	var ve *ViolationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsViolation checks if an error is any strict-mode violation.
func IsViolation(err error) bool {
	_, ok := AsViolation(err)
	return ok
}

// IsDeferredFieldAccessed checks for a DEFERRED_FIELD_ACCESSED violation.
func IsDeferredFieldAccessed(err error) bool {
	return hasCode(err, CodeDeferredFieldAccessed)
}

// IsRelationNotFetched checks for a RELATION_NOT_FETCHED violation.
func IsRelationNotFetched(err error) bool {
	return hasCode(err, CodeRelationNotFetched)
}

// IsQueryMutatedAfterFetch checks for a QUERY_MUTATED_AFTER_FETCH violation.
func IsQueryMutatedAfterFetch(err error) bool {
	return hasCode(err, CodeQueryMutatedAfterFetch)
}

func hasCode(err error, code string) bool {
	ve, ok := AsViolation(err)
	return ok && ve.Code == code
}
