// Package wallet carries the connected wallet identity through a request.
package wallet

import (
	"context"
	"net/http"
	"strings"

	"stacks-fundraising/internal/network"
)

// Headers the presentation layer uses to pass the connected addresses.
const (
	HeaderTestnetAddress = "X-Stacks-Testnet-Address"
	HeaderMainnetAddress = "X-Stacks-Mainnet-Address"
)

// Identity holds the addresses a connected wallet exposes per network.
type Identity struct {
	Testnet string `json:"testnet,omitempty"`
	Mainnet string `json:"mainnet,omitempty"`
	Devnet  string `json:"devnet,omitempty"`
}

// Address returns the address for env and whether one is set.
func (id Identity) Address(env network.Environment) (string, bool) {
	var addr string
	switch env {
	case network.Development:
		addr = id.Devnet
	case network.Test:
		addr = id.Testnet
	default:
		addr = id.Mainnet
	}
	return addr, addr != ""
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, the zero Identity if none.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}

// AddressFromContext resolves the address for env from ctx.
func AddressFromContext(ctx context.Context, env network.Environment) (string, bool) {
	return FromContext(ctx).Address(env)
}

// DevnetSource yields the address of the locally selected devnet wallet.
type DevnetSource func() string

// Middleware attaches the request identity to the request context. Testnet
// and mainnet addresses come from headers; devnet from the local selection.
func Middleware(devnet DevnetSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{
				Testnet: strings.TrimSpace(r.Header.Get(HeaderTestnetAddress)),
				Mainnet: strings.TrimSpace(r.Header.Get(HeaderMainnetAddress)),
			}
			if devnet != nil {
				id.Devnet = devnet()
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
