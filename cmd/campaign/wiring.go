package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"stacks-fundraising/internal/campaign"
	"stacks-fundraising/internal/config"
	"stacks-fundraising/internal/devnet"
	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/network"
	"stacks-fundraising/internal/notify"
	"stacks-fundraising/internal/observability"
	"stacks-fundraising/internal/pricefeed"
	"stacks-fundraising/internal/query"
	"stacks-fundraising/internal/stacks"
	"stacks-fundraising/internal/txbuilder"
)

// components are the collaborators shared by every command.
type components struct {
	cfg      *config.Config
	env      network.Environment
	metrics  *observability.Metrics
	client   *stacks.HTTPClient
	builder  *txbuilder.Builder
	reader   *query.Reader
	feed     pricefeed.Feed
	selector *devnet.Selector // devnet only
}

// resolveContracts fills contract addresses the environment can default.
func resolveContracts(cfg *config.Config, env network.Environment, selector *devnet.Selector) (txbuilder.Contracts, error) {
	params := env.Params()

	fundraising := cfg.FundraisingAddress
	if fundraising == "" && selector != nil {
		fundraising = selector.Wallets()[0].Address
	}
	if fundraising == "" {
		return txbuilder.Contracts{}, errors.New("FUNDRAISING_CONTRACT_ADDRESS is required outside devnet")
	}

	sbtc := cfg.SBTCAddress
	if sbtc == "" {
		sbtc = params.SBTCAddress
	}
	if sbtc == "" {
		sbtc = fundraising
	}

	return txbuilder.Contracts{
		Fundraising: txbuilder.ContractID{Address: fundraising, Name: cfg.FundraisingName},
		SBTC:        txbuilder.ContractID{Address: sbtc, Name: cfg.SBTCName},
		SBTCAsset:   cfg.SBTCAsset,
	}, nil
}

// newComponents builds the shared collaborators. reg may be nil to disable
// metrics.
func newComponents(cfg *config.Config, reg prometheus.Registerer) (*components, error) {
	env := network.Resolve(cfg.Network)
	c := &components{cfg: cfg, env: env}

	if reg != nil {
		c.metrics = observability.NewMetrics(cfg.MetricsNamespace, reg)
	}

	if env == network.Development {
		wallets, err := devnet.ParseWallets(cfg.DevnetWallets, env.Params().AddressVersion)
		if err != nil {
			return nil, fmt.Errorf("devnet wallets: %w", err)
		}
		if c.selector, err = devnet.NewSelector(wallets); err != nil {
			return nil, err
		}
	}

	contracts, err := resolveContracts(cfg, env, c.selector)
	if err != nil {
		return nil, err
	}

	c.client = stacks.NewHTTPClient(env.APIURL(cfg.APIURL),
		stacks.WithTimeout(cfg.RequestTimeout),
		stacks.WithMetrics(c.metrics),
	)
	c.builder = txbuilder.New(contracts)
	c.reader = query.NewReader(c.client, contracts.Fundraising)

	if cfg.StaticPrices() {
		c.feed = pricefeed.NewStaticFeed(cfg.StaticSTXPrice, cfg.StaticBTCPrice)
	} else {
		c.feed = pricefeed.NewHTTPFeed(cfg.PriceFeedURL,
			pricefeed.WithTimeout(cfg.RequestTimeout),
			pricefeed.WithAPIKey(cfg.PriceFeedAPIKey),
		)
	}
	return c, nil
}

// newExecutor builds the executor of the environment. Interactive signing
// goes through interactive, which may be nil on devnet.
func (c *components) newExecutor(interactive executor.InteractiveSigner, notifier notify.Notifier) (*executor.Executor, error) {
	opts := executor.Options{
		Interactive: interactive,
		Notifier:    notifier,
		Metrics:     c.metrics,
	}
	if c.selector != nil {
		opts.Direct = devnet.NewCaller(c.client, c.selector, c.env.Params(), c.cfg.DevnetFee)
	}
	return executor.New(c.env, opts)
}

// newService builds the campaign service around exec.
func (c *components) newService(exec *executor.Executor, sched *query.Scheduler, pub campaign.Publisher, blocks <-chan stacks.BlockEvent) (*campaign.Service, error) {
	return campaign.New(campaign.Config{
		Env:           c.env,
		Builder:       c.builder,
		Reader:        c.reader,
		Scheduler:     sched,
		Feed:          c.feed,
		PriceInterval: c.cfg.PriceInterval,
		Executor:      exec,
		Publisher:     pub,
		Blocks:        blocks,
		Metrics:       c.metrics,
	})
}
