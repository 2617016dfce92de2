package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a mutating operation of the ledger
// packages matches exactly one of these through errors.Is.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyFullyPaid     = errors.New("already fully paid")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrInsufficientBalance  = errors.New("insufficient balance")
)

// Error describes a failed operation on a single record.
type Error struct {
	Kind   error
	Entity string
	ID     string
	Msg    string
}

func (e *Error) Error() string {
	switch {
	case e.ID != "" && e.Msg != "":
		return fmt.Sprintf("%s %s: %s: %s", e.Entity, e.ID, e.Kind, e.Msg)
	case e.ID != "":
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Kind)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Entity, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Entity, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Invalid returns an ErrInvalidConfiguration error for the given entity.
func Invalid(entity, id, msg string) error {
	return &Error{Kind: ErrInvalidConfiguration, Entity: entity, ID: id, Msg: msg}
}

// NotFound returns an ErrNotFound error for the given entity.
func NotFound(entity, id string) error {
	return &Error{Kind: ErrNotFound, Entity: entity, ID: id}
}

// Integrity returns an ErrReferentialIntegrity error for the given entity.
func Integrity(entity, id, msg string) error {
	return &Error{Kind: ErrReferentialIntegrity, Entity: entity, ID: id, Msg: msg}
}
