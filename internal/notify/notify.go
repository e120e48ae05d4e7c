// Package notify delivers user-facing notifications about transaction
// executions.
package notify

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is a toast-style message for the user.
type Notification struct {
	Level       Level  `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TxID        string `json:"txId,omitempty"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct{}

// Notify logs n at a level matching its severity.
func (LogNotifier) Notify(_ context.Context, n Notification) {
	entry := log.WithFields(log.Fields{
		"kind":        string(n.Level),
		"description": n.Description,
	})
	if n.TxID != "" {
		entry = entry.WithField("txid", n.TxID)
	}
	switch n.Level {
	case LevelError:
		entry.Error(n.Title)
	default:
		entry.Info(n.Title)
	}
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

// Notify delivers n to each notifier in order.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu  sync.Mutex
	got []Notification
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.got))
	copy(out, r.got)
	return out
}
