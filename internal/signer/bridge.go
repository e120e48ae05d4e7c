// Package signer hands transaction requests to a human for signing.
package signer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/notify"
	"stacks-fundraising/internal/observability"
	"stacks-fundraising/internal/txbuilder"
)

// ErrUnknownRequest is returned for a sign request id that is not pending.
var ErrUnknownRequest = errors.New("unknown sign request")

// DefaultTimeout bounds how long a sign request stays pending.
const DefaultTimeout = 10 * time.Minute

// Publisher broadcasts messages to connected presentation clients.
type Publisher interface {
	Publish(msgType string, data any) int
}

// SignRequest is published to clients, which answer with Finish or Cancel.
type SignRequest struct {
	ID        string                       `json:"id"`
	Request   txbuilder.TransactionRequest `json:"request"`
	ExpiresAt time.Time                    `json:"expiresAt"`
}

type pending struct {
	req   SignRequest
	cb    executor.Callbacks
	timer *time.Timer
}

// Bridge relays sign requests to websocket clients and their verdicts back
// to the executor.
type Bridge struct {
	pub     Publisher
	timeout time.Duration
	metrics *observability.Metrics
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*pending
}

// NewBridge creates a Bridge publishing through pub. A zero timeout uses
// DefaultTimeout.
func NewBridge(pub Publisher, timeout time.Duration, m *observability.Metrics) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		pub:     pub,
		timeout: timeout,
		metrics: m,
		now:     time.Now,
		pending: make(map[string]*pending),
	}
}

// Open publishes req. It fails when no client received it. Once published
// the request stays pending until a verdict arrives or it expires, even if
// ctx ends.
func (b *Bridge) Open(ctx context.Context, req txbuilder.TransactionRequest, cb executor.Callbacks) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSigningFailed, err)
	}
	sr := SignRequest{
		ID:        uuid.NewString(),
		Request:   req,
		ExpiresAt: b.now().Add(b.timeout),
	}
	p := &pending{req: sr, cb: cb}

	b.mu.Lock()
	b.pending[sr.ID] = p
	b.metrics.SetPendingSignatures(len(b.pending))
	b.mu.Unlock()

	if n := b.pub.Publish(notify.TypeSignRequest, sr); n == 0 {
		b.take(sr.ID)
		return fmt.Errorf("%w: no wallet client connected", domain.ErrSigningFailed)
	}

	b.mu.Lock()
	if _, ok := b.pending[sr.ID]; ok {
		p.timer = time.AfterFunc(b.timeout, func() { b.expire(sr.ID) })
	}
	b.mu.Unlock()

	log.WithFields(log.Fields{
		"id":     sr.ID,
		"action": req.FunctionName,
	}).Info("sign request published")
	return nil
}

// Finish reports the wallet signed and broadcast the request.
func (b *Bridge) Finish(id, txID string) error {
	if txID == "" {
		return fmt.Errorf("finish %s: empty transaction id", id)
	}
	p := b.take(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	p.cb.OnFinish(txID)
	return nil
}

// Cancel reports the user declined the request.
func (b *Bridge) Cancel(id string) error {
	p := b.take(id)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	p.cb.OnCancel()
	return nil
}

// Pending returns the outstanding requests, oldest expiry first.
func (b *Bridge) Pending() []SignRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SignRequest, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// expire treats an unanswered request as declined.
func (b *Bridge) expire(id string) {
	p := b.take(id)
	if p == nil {
		return
	}
	log.WithField("id", id).Warn("sign request expired")
	p.cb.OnCancel()
}

// take removes and returns the pending request id, or nil.
func (b *Bridge) take(id string) *pending {
	b.mu.Lock()
	p, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.metrics.SetPendingSignatures(len(b.pending))
	b.mu.Unlock()
	if !ok {
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	return p
}
