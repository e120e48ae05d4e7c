// Package stub provides an in-memory stacks.Client for tests.
package stub

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"stacks-fundraising/internal/stacks"
)

// Client implements stacks.Client from canned answers.
type Client struct {
	mu           sync.Mutex
	readOnly     map[string]*stacks.ReadOnlyResult
	readOnlyErr  map[string]error
	nonces       map[string]uint64
	broadcasts   [][]byte
	broadcastErr error
	calls        map[string]int
}

// NewClient creates a new stub client.
func NewClient() *Client {
	return &Client{
		readOnly:    make(map[string]*stacks.ReadOnlyResult),
		readOnlyErr: make(map[string]error),
		nonces:      make(map[string]uint64),
		calls:       make(map[string]int),
	}
}

func key(fn string, args []string) string {
	if len(args) == 0 {
		return fn
	}
	return fn + "|" + strings.Join(args, ",")
}

// SetOk answers fn with a successful hex result for any arguments.
func (c *Client) SetOk(fn, resultHex string) {
	c.SetResult(fn, nil, &stacks.ReadOnlyResult{Okay: true, Result: resultHex})
}

// SetFailure answers fn with okay=false and cause.
func (c *Client) SetFailure(fn, cause string) {
	c.SetResult(fn, nil, &stacks.ReadOnlyResult{Okay: false, Cause: cause})
}

// SetResult answers fn called with exactly args. Nil args matches any call
// without a more specific answer.
func (c *Client) SetResult(fn string, args []string, res *stacks.ReadOnlyResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(fn, args)
	delete(c.readOnlyErr, k)
	c.readOnly[k] = res
}

// SetError makes fn fail with a transport error.
func (c *Client) SetError(fn string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.readOnly, fn)
	c.readOnlyErr[fn] = err
}

// SetNonce sets the account nonce returned for principal.
func (c *Client) SetNonce(principal string, nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[principal] = nonce
}

// SetBroadcastError makes BroadcastTransaction fail with err.
func (c *Client) SetBroadcastError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcastErr = err
}

// Calls returns how many times fn was called.
func (c *Client) Calls(fn string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[fn]
}

// Broadcasts returns the transactions submitted so far.
func (c *Client) Broadcasts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.broadcasts))
	copy(out, c.broadcasts)
	return out
}

// CallReadOnly returns the canned answer for the call.
func (c *Client) CallReadOnly(_ context.Context, call stacks.ReadOnlyCall) (*stacks.ReadOnlyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[call.FunctionName]++

	if err, ok := c.readOnlyErr[call.FunctionName]; ok {
		return nil, err
	}
	if res, ok := c.readOnly[key(call.FunctionName, call.Args)]; ok {
		cp := *res
		return &cp, nil
	}
	if res, ok := c.readOnly[call.FunctionName]; ok {
		cp := *res
		return &cp, nil
	}
	return &stacks.ReadOnlyResult{
		Okay:  false,
		Cause: fmt.Sprintf("Unchecked(NoSuchContract(%q))", call.ContractAddress+"."+call.ContractName),
	}, nil
}

// GetAccountNonce returns the configured nonce, zero when unset.
func (c *Client) GetAccountNonce(_ context.Context, principal string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[principal], nil
}

// BroadcastTransaction records tx and returns its txid.
func (c *Client) BroadcastTransaction(_ context.Context, tx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broadcastErr != nil {
		return "", c.broadcastErr
	}
	c.broadcasts = append(c.broadcasts, append([]byte(nil), tx...))
	sum := sha512.Sum512_256(tx)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

var _ stacks.Client = (*Client)(nil)
