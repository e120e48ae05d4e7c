package clarity

import "errors"

var (
	// ErrMalformed is returned when bytes are not a valid serialized value.
	ErrMalformed = errors.New("malformed clarity value")

	// ErrUnexpectedType is returned when a value does not have the requested type.
	ErrUnexpectedType = errors.New("unexpected clarity type")

	// ErrMissingField is returned when a tuple lacks a required field.
	ErrMissingField = errors.New("missing tuple field")

	// ErrInvalidAddress is returned for addresses that fail c32check validation.
	ErrInvalidAddress = errors.New("invalid stacks address")
)
