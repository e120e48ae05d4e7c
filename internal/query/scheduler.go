package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/observability"
)

// DefaultInterval is the refetch interval of queries that set none.
const DefaultInterval = 10 * time.Second

// ErrStopped is returned by Watch after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Query is a periodically refetched read.
type Query struct {
	Key      string
	Interval time.Duration // zero means the scheduler default
	// Enabled gates every tick; a disabled tick neither fetches nor emits.
	Enabled func() bool
	Fetch   func(ctx context.Context) (any, error)
}

// Result is the outcome of one fetch.
type Result struct {
	Key  string
	Data any
	Err  error
	At   time.Time
}

// Scheduler refetches watched queries on a gocron scheduler and writes every
// result to its Cache. Watches of the same key share one job.
type Scheduler struct {
	cron     *gocron.Scheduler
	cache    *Cache
	interval time.Duration
	metrics  *observability.Metrics
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
	stopped bool
}

type entry struct {
	query     Query
	job       *gocron.Job
	ctx       context.Context
	cancel    context.CancelFunc
	listeners map[uint64]*Subscription
}

// SchedulerOption configures Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the default refetch interval.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMetrics records refresh outcomes.
func WithMetrics(m *observability.Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// NewScheduler creates a running scheduler writing to cache.
func NewScheduler(cache *Cache, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		cache:    cache,
		interval: DefaultInterval,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron.StartAsync()
	return s
}

// Cache returns the cache results are written to.
func (s *Scheduler) Cache() *Cache {
	return s.cache
}

// Subscription is one watcher of a query.
type Subscription struct {
	id        uint64
	key       string
	onResult  func(Result)
	sched     *Scheduler
	cancelled atomic.Bool

	mu   sync.Mutex
	stop func() bool
}

// Key returns the watched query key.
func (sub *Subscription) Key() string {
	return sub.key
}

// Cancel stops delivery to this watcher. The query's job is removed with its
// last watcher. Cancel is idempotent.
func (sub *Subscription) Cancel() {
	if sub.cancelled.Swap(true) {
		return
	}
	sub.detach()
	sub.sched.release(sub)
}

// detach unregisters the context hook installed by Watch.
func (sub *Subscription) detach() {
	sub.mu.Lock()
	stop := sub.stop
	sub.stop = nil
	sub.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Watch starts refetching q and delivers every result to onResult, which may
// be nil. The first fetch runs immediately. Cancelling ctx cancels the
// subscription.
func (s *Scheduler) Watch(ctx context.Context, q Query, onResult func(Result)) (*Subscription, error) {
	if q.Key == "" || q.Fetch == nil {
		return nil, fmt.Errorf("query needs a key and a fetch function")
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}

	s.nextID++
	sub := &Subscription{id: s.nextID, key: q.Key, onResult: onResult, sched: s}

	e, ok := s.entries[q.Key]
	if !ok {
		jobCtx, cancel := context.WithCancel(context.Background())
		e = &entry{
			query:     q,
			ctx:       jobCtx,
			cancel:    cancel,
			listeners: make(map[uint64]*Subscription),
		}
		e.listeners[sub.id] = sub
		s.entries[q.Key] = e

		interval := q.Interval
		if interval <= 0 {
			interval = s.interval
		}
		job, err := s.cron.Every(interval).Tag(q.Key).SingletonMode().Do(s.run, e)
		if err != nil {
			delete(s.entries, q.Key)
			s.mu.Unlock()
			cancel()
			return nil, fmt.Errorf("schedule %s: %w", q.Key, err)
		}
		e.job = job
		s.mu.Unlock()
		log.WithFields(log.Fields{"query": q.Key, "interval": interval}).Debug("query scheduled")
	} else {
		e.listeners[sub.id] = sub
		s.mu.Unlock()
		// Late watchers see the current value right away.
		if cached, ok := s.cache.Get(q.Key); ok {
			r := Result{Key: q.Key, Data: cached.Data, Err: cached.Err, At: cached.UpdatedAt}
			if r.Err != nil {
				r.Data = nil
			}
			sub.deliver(r)
		}
	}

	stop := context.AfterFunc(ctx, sub.Cancel)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	// Cancelled while the hook was being installed.
	if sub.cancelled.Load() {
		sub.detach()
	}
	return sub, nil
}

func (sub *Subscription) deliver(r Result) {
	if sub.onResult == nil || sub.cancelled.Load() {
		return
	}
	sub.onResult(r)
}

func (s *Scheduler) release(sub *Subscription) {
	s.mu.Lock()
	e, ok := s.entries[sub.key]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(e.listeners, sub.id)
	if len(e.listeners) > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.entries, sub.key)
	s.mu.Unlock()

	s.cron.RemoveByReference(e.job)
	e.cancel()
	log.WithField("query", sub.key).Debug("query unscheduled")
}

// run executes one tick of e.
func (s *Scheduler) run(e *entry) {
	q := e.query
	if q.Enabled != nil && !q.Enabled() {
		return
	}
	if e.ctx.Err() != nil {
		return
	}

	data, err := q.Fetch(e.ctx)
	if e.ctx.Err() != nil {
		return
	}

	at := s.now()
	s.cache.Set(q.Key, data, err, at)
	s.metrics.RecordQueryRefresh(q.Key, err, float64(at.Unix()))
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"query": q.Key,
			"kind":  domain.ErrorKind(err),
		}).Warn("query failed")
		data = nil
	}

	s.mu.Lock()
	listeners := make([]*Subscription, 0, len(e.listeners))
	for _, sub := range e.listeners {
		listeners = append(listeners, sub)
	}
	s.mu.Unlock()

	r := Result{Key: q.Key, Data: data, Err: err, At: at}
	for _, sub := range listeners {
		sub.deliver(r)
	}
}

// Refresh runs the query under key now.
func (s *Scheduler) Refresh(key string) error {
	s.mu.Lock()
	_, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("query %q is not watched", key)
	}
	return s.cron.RunByTag(key)
}

// RefreshAll runs every watched query now.
func (s *Scheduler) RefreshAll() {
	s.cron.RunAll()
}

// Keys returns the keys of the watched queries.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stop removes every job and stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	entries := s.entries
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range entries {
		for _, sub := range e.listeners {
			sub.cancelled.Store(true)
			sub.detach()
		}
		e.cancel()
	}
	s.cron.Stop()
}
