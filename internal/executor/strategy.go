package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/txbuilder"
)

// Strategy submits a transaction request and reports its txid. A declined
// signature is reported as an error wrapping domain.ErrSigningDeclined.
type Strategy interface {
	Name() string
	Submit(ctx context.Context, req txbuilder.TransactionRequest) (string, error)
}

// DirectCaller signs and broadcasts a request with a local key.
type DirectCaller interface {
	Call(ctx context.Context, req txbuilder.TransactionRequest) (string, error)
}

// Callbacks receive the verdict of an interactive signer. Only the first
// call across both callbacks is honored.
type Callbacks struct {
	OnFinish func(txID string)
	OnCancel func()
}

// InteractiveSigner hands a request to a human for approval. Open returns
// once the handoff happened; the verdict arrives through the callbacks.
// ctx only bounds the handoff. Once Open succeeds the signer must deliver a
// verdict eventually, treating an unanswered request as declined.
type InteractiveSigner interface {
	Open(ctx context.Context, req txbuilder.TransactionRequest, cb Callbacks) error
}

// DirectStrategy submits through a DirectCaller.
type DirectStrategy struct {
	caller DirectCaller
}

// NewDirectStrategy creates a DirectStrategy.
func NewDirectStrategy(caller DirectCaller) *DirectStrategy {
	return &DirectStrategy{caller: caller}
}

// Name returns "direct".
func (s *DirectStrategy) Name() string { return "direct" }

// Submit calls the contract and returns the txid.
func (s *DirectStrategy) Submit(ctx context.Context, req txbuilder.TransactionRequest) (string, error) {
	txID, err := s.caller.Call(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrSigningFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrSigningFailed, err)
	}
	if txID == "" {
		return "", fmt.Errorf("%w: empty transaction id", domain.ErrSigningFailed)
	}
	return txID, nil
}

// InteractiveStrategy submits through an InteractiveSigner.
type InteractiveStrategy struct {
	signer InteractiveSigner
}

// NewInteractiveStrategy creates an InteractiveStrategy.
func NewInteractiveStrategy(signer InteractiveSigner) *InteractiveStrategy {
	return &InteractiveStrategy{signer: signer}
}

// Name returns "interactive".
func (s *InteractiveStrategy) Name() string { return "interactive" }

type verdict struct {
	txID     string
	declined bool
}

// Submit opens the signer and waits for its verdict. After the handoff the
// wait does not end with ctx: only the human can finish or decline.
func (s *InteractiveStrategy) Submit(ctx context.Context, req txbuilder.TransactionRequest) (string, error) {
	done := make(chan verdict, 1)
	var once sync.Once
	cb := Callbacks{
		OnFinish: func(txID string) {
			once.Do(func() { done <- verdict{txID: txID} })
		},
		OnCancel: func() {
			once.Do(func() { done <- verdict{declined: true} })
		},
	}

	if err := s.signer.Open(ctx, req, cb); err != nil {
		if errors.Is(err, domain.ErrSigningDeclined) || errors.Is(err, domain.ErrSigningFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrSigningFailed, err)
	}

	v := <-done
	if v.declined {
		return "", domain.ErrSigningDeclined
	}
	if v.txID == "" {
		return "", fmt.Errorf("%w: empty transaction id", domain.ErrSigningFailed)
	}
	return v.txID, nil
}
