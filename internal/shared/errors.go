package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a unique business identifier collision.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrProtectedReference indicates a delete was refused because the row is still referenced.
	ErrProtectedReference = errors.New("record is referenced and cannot be deleted")
	// ErrInvalidOperation indicates the operation does not apply to the record's state.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrAlreadySettled indicates the commission has no remaining balance to settle.
	ErrAlreadySettled = errors.New("commission already settled")
	// ErrConcurrencyConflict indicates a serialization failure; callers should retry.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
