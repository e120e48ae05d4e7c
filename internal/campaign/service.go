// Package campaign ties the query layer, the price feed and the executor
// together behind the operations the presentation layer uses.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/network"
	"stacks-fundraising/internal/notify"
	"stacks-fundraising/internal/observability"
	"stacks-fundraising/internal/pricefeed"
	"stacks-fundraising/internal/query"
	"stacks-fundraising/internal/stacks"
	"stacks-fundraising/internal/txbuilder"
	"stacks-fundraising/internal/wallet"
)

var (
	// ErrNotLoaded is returned before the first poll of a query completed.
	ErrNotLoaded = errors.New("not loaded yet")

	// ErrSalePricesNotFound is returned when a purchase is requested before
	// the campaign prices are known.
	ErrSalePricesNotFound = errors.New("sale prices not found")

	// ErrNotStarted is returned by operations that need a running service.
	ErrNotStarted = errors.New("campaign service not started")
)

// Publisher pushes updates to connected clients.
type Publisher interface {
	Publish(msgType string, data any) int
}

// Snapshot is the campaign state served to clients.
type Snapshot struct {
	domain.CampaignInfo
	Lifecycle domain.Lifecycle `json:"lifecycle"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Config wires a Service.
type Config struct {
	Env           network.Environment
	Builder       *txbuilder.Builder
	Reader        *query.Reader
	Scheduler     *query.Scheduler
	Feed          pricefeed.Feed
	PriceInterval time.Duration
	Executor      *executor.Executor
	// Publisher and Blocks are optional.
	Publisher Publisher
	Blocks    <-chan stacks.BlockEvent
	Metrics   *observability.Metrics
}

// Service is the campaign core.
type Service struct {
	cfg   Config
	cache *query.Cache

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	subs      []*query.Subscription
	purchases map[string]*query.Subscription
	wg        sync.WaitGroup
}

// New validates cfg and creates a stopped Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Builder == nil:
		return nil, fmt.Errorf("campaign: builder is required")
	case cfg.Reader == nil:
		return nil, fmt.Errorf("campaign: reader is required")
	case cfg.Scheduler == nil:
		return nil, fmt.Errorf("campaign: scheduler is required")
	case cfg.Feed == nil:
		return nil, fmt.Errorf("campaign: price feed is required")
	case cfg.Executor == nil:
		return nil, fmt.Errorf("campaign: executor is required")
	}
	return &Service{
		cfg:       cfg,
		cache:     cfg.Scheduler.Cache(),
		purchases: make(map[string]*query.Subscription),
	}, nil
}

// Env returns the environment the service runs in.
func (s *Service) Env() network.Environment {
	return s.cfg.Env
}

// Start begins polling prices and campaign info and, when configured,
// refreshes every query on each new block.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)

	pricesSub, err := s.cfg.Scheduler.Watch(runCtx, query.PricesQuery(s.cfg.Feed, s.cfg.PriceInterval), s.onPrices)
	if err != nil {
		cancel()
		return fmt.Errorf("watch prices: %w", err)
	}
	infoSub, err := s.cfg.Scheduler.Watch(runCtx, query.CampaignInfoQuery(s.cfg.Reader, s.prices), s.onCampaignInfo)
	if err != nil {
		pricesSub.Cancel()
		cancel()
		return fmt.Errorf("watch campaign info: %w", err)
	}

	s.ctx, s.cancel = runCtx, cancel
	s.subs = []*query.Subscription{pricesSub, infoSub}

	if s.cfg.Blocks != nil {
		s.wg.Add(1)
		go s.followBlocks(runCtx)
	}

	log.WithFields(log.Fields{
		"env":      s.cfg.Env.String(),
		"contract": s.cfg.Builder.Contracts().Fundraising.String(),
	}).Info("campaign service started")
	return nil
}

// Stop cancels every watch the service holds and waits for the block follower.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	subs := s.subs
	for _, sub := range s.purchases {
		subs = append(subs, sub)
	}
	s.subs = nil
	s.purchases = make(map[string]*query.Subscription)
	s.cancel = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.wg.Wait()
	log.Info("campaign service stopped")
}

func (s *Service) followBlocks(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-s.cfg.Blocks:
			if !ok {
				return
			}
			s.cfg.Metrics.RecordBlockEvent()
			log.WithField("height", b.Height).Debug("new block, refreshing queries")
			s.cfg.Scheduler.RefreshAll()
		}
	}
}

func (s *Service) onPrices(r query.Result) {
	prices, _ := r.Data.(domain.PriceData)
	s.cfg.Metrics.UpdatePrices(prices, r.Err)
	if r.Err != nil || !prices.Complete() {
		return
	}
	if _, ok := s.cache.Get(query.KeyCampaignInfo); !ok {
		if err := s.cfg.Scheduler.Refresh(query.KeyCampaignInfo); err != nil {
			log.WithError(err).Debug("campaign info refresh skipped")
		}
	}
}

func (s *Service) onCampaignInfo(r query.Result) {
	if r.Err != nil {
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		return
	}
	s.cfg.Metrics.UpdateCampaign(snap.CampaignInfo)
	if s.cfg.Publisher != nil {
		s.cfg.Publisher.Publish(notify.TypeCampaign, snap)
	}
}

// prices returns the last successfully fetched prices, nil when none. A
// failed refetch does not hide them.
func (s *Service) prices() domain.PriceData {
	e, ok := s.cache.Get(query.KeyPrices)
	if !ok {
		return nil
	}
	p, _ := e.Data.(domain.PriceData)
	return p
}

// Prices returns the last price fetch result.
func (s *Service) Prices() (domain.PriceData, error) {
	e, ok := s.cache.Get(query.KeyPrices)
	if !ok {
		return nil, ErrNotLoaded
	}
	if e.Err != nil {
		return nil, e.Err
	}
	p, _ := e.Data.(domain.PriceData)
	return p, nil
}

// CampaignInfo returns the last polled campaign info with its USD value
// computed from the last prices. It fails with the poll error when the last
// poll failed.
func (s *Service) CampaignInfo() (*domain.CampaignInfo, error) {
	e, ok := s.cache.Get(query.KeyCampaignInfo)
	if !ok {
		return nil, ErrNotLoaded
	}
	if e.Err != nil {
		return nil, e.Err
	}
	return s.withUSD(e)
}

// lastCampaignInfo returns the last successfully polled campaign info even
// when the latest poll failed.
func (s *Service) lastCampaignInfo() (*domain.CampaignInfo, error) {
	e, ok := s.cache.Get(query.KeyCampaignInfo)
	if !ok {
		return nil, ErrNotLoaded
	}
	if e.Data == nil && e.Err != nil {
		return nil, e.Err
	}
	return s.withUSD(e)
}

func (s *Service) withUSD(e query.Entry) (*domain.CampaignInfo, error) {
	info, ok := e.Data.(*domain.CampaignInfo)
	if !ok || info == nil {
		return nil, fmt.Errorf("%w: campaign info", domain.ErrDecoding)
	}
	withUSD := info.WithUSD(s.prices())
	return &withUSD, nil
}

// FetchCampaignInfo reads the campaign info from chain once and caches it
// like a poll would, without waiting for prices.
func (s *Service) FetchCampaignInfo(ctx context.Context) (*domain.CampaignInfo, error) {
	info, err := s.cfg.Reader.CampaignInfo(ctx)
	s.cache.Set(query.KeyCampaignInfo, info, err, time.Now())
	if err != nil {
		return nil, err
	}
	return s.CampaignInfo()
}

// Snapshot returns CampaignInfo with its lifecycle and poll time.
func (s *Service) Snapshot() (*Snapshot, error) {
	info, err := s.CampaignInfo()
	if err != nil {
		return nil, err
	}
	e, _ := s.cache.Get(query.KeyCampaignInfo)
	return &Snapshot{CampaignInfo: *info, Lifecycle: info.Lifecycle(), UpdatedAt: e.UpdatedAt}, nil
}

// PurchaseStatus returns the purchase record of the context identity. The
// first call for an address starts polling it and fetches synchronously.
func (s *Service) PurchaseStatus(ctx context.Context) (*domain.PurchaseStatus, error) {
	addr, ok := wallet.AddressFromContext(ctx, s.cfg.Env)
	if !ok {
		return nil, domain.ErrPreconditionUnmet
	}
	if err := s.watchPurchase(addr); err != nil {
		return nil, err
	}

	key := query.PurchaseKey(addr)
	e, ok := s.cache.Get(key)
	if !ok {
		status, err := s.cfg.Reader.PurchaseStatus(ctx, addr)
		s.cache.Set(key, status, err, time.Now())
		return status, err
	}
	if e.Err != nil {
		return nil, e.Err
	}
	status, _ := e.Data.(*domain.PurchaseStatus)
	return status, nil
}

// HasPurchased reports whether the context identity has a purchase record.
func (s *Service) HasPurchased(ctx context.Context) (bool, error) {
	status, err := s.PurchaseStatus(ctx)
	if err != nil {
		return false, err
	}
	return domain.HasPurchased(status), nil
}

func (s *Service) watchPurchase(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return ErrNotStarted
	}
	if _, ok := s.purchases[addr]; ok {
		return nil
	}
	sub, err := s.cfg.Scheduler.Watch(s.ctx, query.PurchaseStatusQuery(s.cfg.Reader, addr), nil)
	if err != nil {
		return fmt.Errorf("watch purchase status: %w", err)
	}
	s.purchases[addr] = sub
	return nil
}

// Submit builds action for the context identity and executes it. Purchases
// are priced from the last successfully polled campaign info.
func (s *Service) Submit(ctx context.Context, action txbuilder.Action) executor.Outcome {
	msgs := MessagesFor(action)

	addr, ok := wallet.AddressFromContext(ctx, s.cfg.Env)
	if !ok {
		log.WithFields(log.Fields{
			"action": string(action),
			"kind":   domain.ErrorKind(domain.ErrPreconditionUnmet),
		}).Warn("no wallet address, building request with an empty address")
	}

	p := txbuilder.PurchaseParams{Address: addr}
	if asset, isPurchase := action.PaymentAsset(); isPurchase {
		info, err := s.lastCampaignInfo()
		if err != nil {
			return s.cfg.Executor.Fail(ctx, action, fmt.Errorf("%w: %v", ErrSalePricesNotFound, err), failWith(msgs, salePricesNotFound))
		}
		p.Price = info.Price(asset)
	}

	req, err := s.cfg.Builder.Build(action, s.cfg.Env.Network(), p)
	if err != nil {
		return s.cfg.Executor.Fail(ctx, action, err, msgs)
	}
	return s.cfg.Executor.Execute(ctx, req, msgs)
}

func failWith(msgs executor.Messages, failure string) executor.Messages {
	msgs.Failure = failure
	return msgs
}
