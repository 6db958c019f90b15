package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies ledger failures so callers can render or map them
type Code string

const (
	CodeNotFound         Code = "not_found"
	CodeInvalidAmount    Code = "invalid_amount"
	CodeSameAccount      Code = "same_account"
	CodeImmutableField   Code = "immutable_field"
	CodeEmptySelection   Code = "empty_selection"
	CodeNoChanges        Code = "no_changes"
	CodeAlreadyMatched   Code = "already_matched"
	CodeReferencedEntity Code = "referenced_entity"
	CodeInvalidCursor    Code = "invalid_cursor"
	CodeInvalidInput     Code = "invalid_input"
)

// Error is a classified ledger failure carrying enough context to render a message
type Error struct {
	Code    Code
	Entity  string
	ID      string
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := []string{string(e.Code)}
	if e.Entity != "" {
		parts = append(parts, e.Entity)
	}
	if e.ID != "" {
		parts = append(parts, e.ID)
	}
	if e.Field != "" {
		parts = append(parts, "field "+e.Field)
	}
	return strings.Join(parts, ": ")
}

// Is matches any *Error with the same code, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrInvalidAmount    = &Error{Code: CodeInvalidAmount}
	ErrSameAccount      = &Error{Code: CodeSameAccount}
	ErrImmutableField   = &Error{Code: CodeImmutableField}
	ErrEmptySelection   = &Error{Code: CodeEmptySelection}
	ErrNoChanges        = &Error{Code: CodeNoChanges}
	ErrReferencedEntity = &Error{Code: CodeReferencedEntity}
	ErrInvalidCursor    = &Error{Code: CodeInvalidCursor}
	ErrInvalidInput     = &Error{Code: CodeInvalidInput}
)

func NotFound(entity, id string) *Error {
	return &Error{Code: CodeNotFound, Entity: entity, ID: id, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func InvalidAmount(msg string) *Error {
	return &Error{Code: CodeInvalidAmount, Field: "amount", Message: msg}
}

func ImmutableField(field string) *Error {
	return &Error{
		Code:    CodeImmutableField,
		Entity:  "entry",
		Field:   field,
		Message: fmt.Sprintf("%s cannot be changed after an entry is created; delete and recreate the entry instead", field),
	}
}

func ReferencedEntity(entity, id string, references int) *Error {
	return &Error{
		Code:    CodeReferencedEntity,
		Entity:  entity,
		ID:      id,
		Message: fmt.Sprintf("%s %s is referenced by %d entries", entity, id, references),
	}
}

func InvalidInput(field, msg string) *Error {
	return &Error{Code: CodeInvalidInput, Field: field, Message: msg}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// BatchError reports a bulk operation that stopped on one entry. The whole
// batch is rolled back, so every requested id is left for the caller to resubmit.
type BatchError struct {
	Operation  string
	FailedID   string
	Unresolved []string
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s failed at entry %s (%d unresolved): %v",
		e.Operation, e.FailedID, len(e.Unresolved), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
