package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-fundraising/internal/clarity"
	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/observability"
	"stacks-fundraising/internal/pricefeed"
	"stacks-fundraising/internal/stacks/stub"
	"stacks-fundraising/internal/txbuilder"
)

const (
	tick    = 50 * time.Millisecond
	waitFor = 2 * time.Second
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(NewCache(),
		WithInterval(tick),
		WithMetrics(observability.NewMetrics("test", prometheus.NewRegistry())),
	)
	t.Cleanup(s.Stop)
	return s
}

func countingQuery(key string, calls *atomic.Int32) Query {
	return Query{
		Key: key,
		Fetch: func(context.Context) (any, error) {
			return calls.Add(1), nil
		},
	}
}

func TestScheduler_EmitsImmediately(t *testing.T) {
	s := NewScheduler(NewCache(), WithInterval(time.Hour))
	defer s.Stop()

	results := make(chan Result, 1)
	var calls atomic.Int32
	_, err := s.Watch(context.Background(), countingQuery("k", &calls), func(r Result) {
		results <- r
	})
	require.NoError(t, err)

	select {
	case r := <-results:
		assert.Equal(t, "k", r.Key)
		assert.Equal(t, int32(1), r.Data)
		assert.NoError(t, r.Err)
	case <-time.After(waitFor):
		t.Fatal("no immediate result")
	}

	e, ok := s.Cache().Get("k")
	require.True(t, ok)
	assert.Equal(t, int32(1), e.Data)
}

func TestScheduler_Refetches(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32
	_, err := s.Watch(context.Background(), countingQuery("k", &calls), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, waitFor, 10*time.Millisecond)
}

func TestScheduler_CancelStopsTimer(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32
	var delivered atomic.Int32
	sub, err := s.Watch(context.Background(), countingQuery("k", &calls), func(Result) {
		delivered.Add(1)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, waitFor, 10*time.Millisecond)

	sub.Cancel()
	sub.Cancel()
	afterCancel := delivered.Load()
	fetched := calls.Load()

	time.Sleep(5 * tick)
	assert.Equal(t, afterCancel, delivered.Load())
	assert.LessOrEqual(t, calls.Load(), fetched+1, "at most one in-flight tick may finish")
	assert.Empty(t, s.Keys())
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	_, err := s.Watch(ctx, countingQuery("k", &calls), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, waitFor, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return len(s.Keys()) == 0 }, waitFor, 10*time.Millisecond)
}

func TestScheduler_WatchWithDoneContext(t *testing.T) {
	s := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 20; i++ {
		var calls atomic.Int32
		sub, err := s.Watch(ctx, countingQuery("k", &calls), nil)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return len(s.Keys()) == 0 }, waitFor, time.Millisecond)
		sub.Cancel()
	}
}

func TestScheduler_FailedRefetchKeepsLastData(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32
	q := Query{
		Key: "k",
		Fetch: func(context.Context) (any, error) {
			if n := calls.Add(1); n > 1 {
				return nil, errors.New("node hiccup")
			}
			return "first", nil
		},
	}
	_, err := s.Watch(context.Background(), q, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, waitFor, 10*time.Millisecond)

	e, ok := s.Cache().Get("k")
	require.True(t, ok)
	assert.Equal(t, "first", e.Data)
	require.Eventually(t, func() bool {
		e, _ := s.Cache().Get("k")
		return e.Err != nil
	}, waitFor, 10*time.Millisecond)

	// Late watchers see the failure, not stale data.
	late := make(chan Result, 1)
	_, err = s.Watch(context.Background(), q, func(r Result) {
		select {
		case late <- r:
		default:
		}
	})
	require.NoError(t, err)
	select {
	case r := <-late:
		assert.Error(t, r.Err)
		assert.Nil(t, r.Data)
	case <-time.After(waitFor):
		t.Fatal("late watcher got no result")
	}
}

func TestScheduler_DisabledDoesNotFetch(t *testing.T) {
	s := newTestScheduler(t)
	var enabled atomic.Bool
	var calls atomic.Int32
	var delivered atomic.Int32

	q := countingQuery("gated", &calls)
	q.Enabled = enabled.Load
	_, err := s.Watch(context.Background(), q, func(Result) { delivered.Add(1) })
	require.NoError(t, err)

	time.Sleep(4 * tick)
	assert.Zero(t, calls.Load())
	assert.Zero(t, delivered.Load())
	_, cached := s.Cache().Get("gated")
	assert.False(t, cached)

	enabled.Store(true)
	require.Eventually(t, func() bool { return delivered.Load() >= 1 }, waitFor, 10*time.Millisecond)
}

func TestScheduler_SharedKey(t *testing.T) {
	s := newTestScheduler(t)
	var calls atomic.Int32
	var first, second atomic.Int32

	sub1, err := s.Watch(context.Background(), countingQuery("shared", &calls), func(Result) { first.Add(1) })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return first.Load() >= 1 }, waitFor, 10*time.Millisecond)

	_, err = s.Watch(context.Background(), countingQuery("shared", &calls), func(Result) { second.Add(1) })
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.Load(), int32(1), "late watcher gets the cached value")
	assert.Len(t, s.Keys(), 1)

	sub1.Cancel()
	n := second.Load()
	require.Eventually(t, func() bool { return second.Load() > n }, waitFor, 10*time.Millisecond)
}

func TestScheduler_RefreshAll(t *testing.T) {
	s := NewScheduler(NewCache(), WithInterval(time.Hour))
	defer s.Stop()

	var calls atomic.Int32
	_, err := s.Watch(context.Background(), countingQuery("k", &calls), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, 10*time.Millisecond)

	s.RefreshAll()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, 10*time.Millisecond)

	require.NoError(t, s.Refresh("k"))
	require.Eventually(t, func() bool { return calls.Load() == 3 }, waitFor, 10*time.Millisecond)

	assert.Error(t, s.Refresh("unknown"))
}

func TestScheduler_Stopped(t *testing.T) {
	s := NewScheduler(NewCache())
	s.Stop()
	s.Stop()

	_, err := s.Watch(context.Background(), Query{Key: "k", Fetch: func(context.Context) (any, error) { return nil, nil }}, nil)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestScheduler_InvalidQuery(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.Watch(context.Background(), Query{Key: "k"}, nil)
	assert.Error(t, err)
}

// A campaign contract that is not deployed yet fails every tick with a
// contract error and leaves the data undefined; once deployed, the next
// tick recovers.
func TestScheduler_NoSuchContractThenDeployed(t *testing.T) {
	client := stub.NewClient()
	reader := NewReader(client, txbuilder.ContractID{Address: contractAddr, Name: "fundraising"})
	prices := func() domain.PriceData {
		return domain.PriceData{domain.STX: 0.5, domain.SBTC: 100_000}
	}

	s := newTestScheduler(t)

	var mu sync.Mutex
	var results []Result
	_, err := s.Watch(context.Background(), CampaignInfoQuery(reader, prices), func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 1
	}, waitFor, 10*time.Millisecond)

	mu.Lock()
	first := results[0]
	mu.Unlock()
	var ce *domain.ContractError
	require.True(t, errors.As(first.Err, &ce))
	assert.Contains(t, ce.Cause, "NoSuchContract")
	assert.Nil(t, first.Data)

	e, ok := s.Cache().Get(KeyCampaignInfo)
	require.True(t, ok)
	assert.Nil(t, e.Data)
	assert.Error(t, e.Err)

	client.SetOk(FnCampaignInfo, clarity.EncodeHex(clarity.ResponseOk{Value: campaignTuple()}))

	require.Eventually(t, func() bool {
		e, _ := s.Cache().Get(KeyCampaignInfo)
		info, ok := e.Data.(*domain.CampaignInfo)
		return ok && info != nil && info.Start == 100
	}, waitFor, 10*time.Millisecond)
}

func TestScheduler_CampaignInfoWaitsForPrices(t *testing.T) {
	client := stub.NewClient()
	client.SetOk(FnCampaignInfo, clarity.EncodeHex(clarity.ResponseOk{Value: campaignTuple()}))
	reader := NewReader(client, txbuilder.ContractID{Address: contractAddr, Name: "fundraising"})

	s := newTestScheduler(t)
	feed := pricefeed.NewStaticFeed(0.5, 0)
	_, err := s.Watch(context.Background(), PricesQuery(feed, tick), nil)
	require.NoError(t, err)

	latest := func() domain.PriceData {
		e, _ := s.Cache().Get(KeyPrices)
		p, _ := e.Data.(domain.PriceData)
		return p
	}
	_, err = s.Watch(context.Background(), CampaignInfoQuery(reader, latest), nil)
	require.NoError(t, err)

	time.Sleep(4 * tick)
	assert.Zero(t, client.Calls(FnCampaignInfo))
}

func TestPurchaseStatusQuery_EmptyAddressDisabled(t *testing.T) {
	q := PurchaseStatusQuery(NewReader(stub.NewClient(), txbuilder.ContractID{}), "")
	assert.False(t, q.Enabled())
	assert.Equal(t, "existingPurchases/", q.Key)

	q = PurchaseStatusQuery(NewReader(stub.NewClient(), txbuilder.ContractID{}), buyer)
	assert.True(t, q.Enabled())
	assert.Equal(t, PurchaseKey(buyer), q.Key)
}

func TestCache_ErrorKeepsLastData(t *testing.T) {
	c := NewCache()
	now := time.Now()

	c.Set("k", 42, nil, now)
	e, _ := c.Get("k")
	assert.Equal(t, 42, e.Data)

	later := now.Add(time.Minute)
	c.Set("k", 43, errors.New("boom"), later)
	e, _ = c.Get("k")
	assert.Equal(t, 42, e.Data)
	assert.Equal(t, now, e.UpdatedAt)
	assert.EqualError(t, e.Err, "boom")

	c.Set("k", 44, nil, later)
	e, _ = c.Get("k")
	assert.Equal(t, 44, e.Data)
	assert.Equal(t, later, e.UpdatedAt)
	assert.NoError(t, e.Err)

	c.Set("fresh", nil, errors.New("down"), now)
	e, ok := c.Get("fresh")
	require.True(t, ok)
	assert.Nil(t, e.Data)
	assert.Error(t, e.Err)
}
