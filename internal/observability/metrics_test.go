package observability

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"stacks-fundraising/internal/domain"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordChainCall("call-read", 0.1, errors.New("x"))
		m.RecordQueryRefresh("campaign-info", nil, 1)
		m.UpdateCampaign(domain.CampaignInfo{})
		m.UpdatePrices(domain.PriceData{domain.STX: 1}, nil)
		m.RecordExecution("withdraw", "direct", "succeeded", 1)
		m.RecordNotification("success")
		m.SetPendingSignatures(1)
		m.SetWSClients(2)
		m.RecordBlockEvent()
	})
}

func TestMetrics_RecordChainCallKind(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordChainCall("call-read", 0.2, fmt.Errorf("dial: %w", domain.ErrConnectivity))
	m.RecordChainCall("call-read", 0.2, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChainCallErrors.WithLabelValues("call-read", "connectivity")))
}

func TestMetrics_UpdateCampaignLifecycle(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.UpdateCampaign(domain.CampaignInfo{Start: 10, TotalSTX: 5_000_000, PurchaseCount: 5, IsCancelled: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CampaignLifecycle.WithLabelValues("cancelled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CampaignLifecycle.WithLabelValues("active")))
	assert.Equal(t, 5_000_000.0, testutil.ToFloat64(m.CampaignTotal.WithLabelValues("stx")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.CampaignPurchaseCount))
}

func TestMetrics_QueryRefresh(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordQueryRefresh("campaign-info", nil, 1700000000)
	m.RecordQueryRefresh("campaign-info", &domain.ContractError{Cause: "NoSuchContract"}, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryRefreshes.WithLabelValues("campaign-info", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryRefreshes.WithLabelValues("campaign-info", "contract")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.QueryLastSuccess.WithLabelValues("campaign-info")))
}
