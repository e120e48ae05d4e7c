package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the query and execution layers.
var (
	// ErrConnectivity is returned when the chain query endpoint cannot be reached.
	ErrConnectivity = errors.New("chain endpoint unreachable")

	// ErrContract is returned when the endpoint answered with a failure for the contract call.
	ErrContract = errors.New("contract call failed")

	// ErrDecoding is returned when a response does not have the expected shape.
	ErrDecoding = errors.New("malformed contract response")

	// ErrSigningDeclined is returned when the human declined the transaction.
	ErrSigningDeclined = errors.New("transaction was cancelled")

	// ErrSigningFailed is returned when the signer failed before completion.
	ErrSigningFailed = errors.New("transaction signing failed")

	// ErrPreconditionUnmet marks an action invoked without a resolved wallet address.
	ErrPreconditionUnmet = errors.New("no wallet address resolved")
)

// ContractError carries the failure cause reported by the endpoint verbatim.
type ContractError struct {
	Cause string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", ErrContract, e.Cause)
}

// Is makes errors.Is(err, ErrContract) hold for any ContractError.
func (e *ContractError) Is(target error) bool {
	return target == ErrContract
}

// ErrorKind names the taxonomy entry err belongs to, for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConnectivity):
		return "connectivity"
	case errors.Is(err, ErrContract):
		return "contract"
	case errors.Is(err, ErrDecoding):
		return "decoding"
	case errors.Is(err, ErrSigningDeclined):
		return "declined"
	case errors.Is(err, ErrSigningFailed):
		return "signing"
	case errors.Is(err, ErrPreconditionUnmet):
		return "precondition"
	default:
		return "other"
	}
}
