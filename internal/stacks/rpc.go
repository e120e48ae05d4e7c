// Package stacks talks to a Stacks node API: read-only contract calls,
// account lookups, transaction broadcast and block notifications.
package stacks

import "context"

// Client defines the Stacks node HTTP interface.
type Client interface {
	ReadOnlyCaller

	// GetAccountNonce returns the next nonce for principal.
	GetAccountNonce(ctx context.Context, principal string) (uint64, error)

	// BroadcastTransaction submits a serialized signed transaction and
	// returns its txid.
	BroadcastTransaction(ctx context.Context, tx []byte) (string, error)
}

// ReadOnlyCaller evaluates read-only contract functions.
type ReadOnlyCaller interface {
	// CallReadOnly evaluates fn on contract with hex-encoded Clarity args.
	// A transport failure is an error wrapping domain.ErrConnectivity; a
	// contract-level failure is reported through ReadOnlyResult.Okay.
	CallReadOnly(ctx context.Context, call ReadOnlyCall) (*ReadOnlyResult, error)
}

// ReadOnlyCall identifies a read-only function invocation.
type ReadOnlyCall struct {
	ContractAddress string
	ContractName    string
	FunctionName    string
	Sender          string
	Args            []string // 0x-hex serialized Clarity values
}

// ReadOnlyResult is the endpoint's answer to a read-only call.
type ReadOnlyResult struct {
	Okay   bool
	Result string // 0x-hex serialized Clarity value when Okay
	Cause  string // failure cause when !Okay
}
