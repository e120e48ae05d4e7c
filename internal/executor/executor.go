// Package executor runs transaction requests through the signing strategy of
// the active environment and reports each outcome exactly once.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/network"
	"stacks-fundraising/internal/notify"
	"stacks-fundraising/internal/observability"
	"stacks-fundraising/internal/txbuilder"
)

// Notification texts shared by every action.
const (
	CancelTitle       = "Transaction not submitted"
	CancelDescription = "Transaction was cancelled"
	ErrorTitle        = "Error"
)

// ErrMissingCollaborator is returned by New when the strategy of the
// environment has no implementation configured.
var ErrMissingCollaborator = errors.New("no signer configured for environment")

// Messages are the caller-supplied notification texts of one action.
type Messages struct {
	Success string
	Failure string
	// Detail precedes the transaction id in the success description.
	Detail string
	// CancelTitle overrides the default title of the decline notification.
	CancelTitle string
}

// Outcome is the terminal result of an execution.
type Outcome struct {
	State State  `json:"state"`
	TxID  string `json:"txId,omitempty"`
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Options configures an Executor.
type Options struct {
	Direct      DirectCaller
	Interactive InteractiveSigner
	Notifier    notify.Notifier
	Metrics     *observability.Metrics
}

// Executor submits requests through one strategy chosen at construction.
type Executor struct {
	strategy Strategy
	notifier notify.Notifier
	metrics  *observability.Metrics
	now      func() time.Time
}

// New selects the strategy for env once: Direct for development, Interactive
// otherwise.
func New(env network.Environment, opts Options) (*Executor, error) {
	var strategy Strategy
	switch env.SigningMode() {
	case network.Direct:
		if opts.Direct == nil {
			return nil, fmt.Errorf("%w: %s needs a direct caller", ErrMissingCollaborator, env)
		}
		strategy = NewDirectStrategy(opts.Direct)
	default:
		if opts.Interactive == nil {
			return nil, fmt.Errorf("%w: %s needs an interactive signer", ErrMissingCollaborator, env)
		}
		strategy = NewInteractiveStrategy(opts.Interactive)
	}
	return NewWithStrategy(strategy, opts.Notifier, opts.Metrics), nil
}

// NewWithStrategy creates an Executor around an explicit strategy.
func NewWithStrategy(strategy Strategy, notifier notify.Notifier, metrics *observability.Metrics) *Executor {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Executor{
		strategy: strategy,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Strategy returns the name of the selected strategy.
func (e *Executor) Strategy() string {
	return e.strategy.Name()
}

// Execute submits req and emits exactly one notification describing the
// outcome. It never retries.
func (e *Executor) Execute(ctx context.Context, req txbuilder.TransactionRequest, msgs Messages) Outcome {
	start := e.now()
	m := newMachine()
	fields := log.Fields{
		"action":   req.FunctionName,
		"network":  req.Network,
		"strategy": e.strategy.Name(),
	}

	m.transition(Submitting)
	log.WithFields(fields).Debug("submitting transaction")

	txID, err := e.strategy.Submit(ctx, req)

	var out Outcome
	switch {
	case err == nil:
		m.transition(Succeeded)
		out = Outcome{TxID: txID}
		log.WithFields(fields).WithField("txid", txID).Info("transaction submitted")
		e.notify(ctx, notify.Notification{
			Level:       notify.LevelSuccess,
			Title:       msgs.Success,
			Description: successDescription(msgs.Detail, txID),
			TxID:        txID,
		})
	case errors.Is(err, domain.ErrSigningDeclined):
		m.transition(Cancelled)
		out = Outcome{Err: err, Error: err.Error()}
		log.WithFields(fields).Info("transaction declined")
		title := msgs.CancelTitle
		if title == "" {
			title = CancelTitle
		}
		e.notify(ctx, notify.Notification{
			Level:       notify.LevelInfo,
			Title:       title,
			Description: CancelDescription,
		})
	default:
		m.transition(Failed)
		out = Outcome{Err: err, Error: err.Error()}
		log.WithFields(fields).WithError(err).WithField("kind", domain.ErrorKind(err)).Error("transaction failed")
		e.notify(ctx, notify.Notification{
			Level:       notify.LevelError,
			Title:       ErrorTitle,
			Description: msgs.Failure,
		})
	}

	out.State = m.state
	e.metrics.RecordExecution(req.FunctionName, e.strategy.Name(), string(out.State), e.now().Sub(start).Seconds())
	return out
}

// Fail reports an execution that failed before a request could be built.
// It emits the error notification like Execute.
func (e *Executor) Fail(ctx context.Context, action txbuilder.Action, err error, msgs Messages) Outcome {
	m := newMachine()
	m.transition(Submitting)
	m.transition(Failed)

	log.WithError(err).WithFields(log.Fields{
		"action": string(action),
		"kind":   domain.ErrorKind(err),
	}).Error("transaction not built")
	e.notify(ctx, notify.Notification{
		Level:       notify.LevelError,
		Title:       ErrorTitle,
		Description: msgs.Failure,
	})
	e.metrics.RecordExecution(string(action), e.strategy.Name(), string(m.state), 0)
	return Outcome{State: m.state, Err: err, Error: err.Error()}
}

func (e *Executor) notify(ctx context.Context, n notify.Notification) {
	e.metrics.RecordNotification(string(n.Level))
	e.notifier.Notify(context.WithoutCancel(ctx), n)
}

func successDescription(detail, txID string) string {
	parts := make([]string, 0, 2)
	if detail != "" {
		parts = append(parts, detail)
	}
	parts = append(parts, "Transaction ID: "+txID)
	return strings.Join(parts, " ")
}
