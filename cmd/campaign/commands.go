package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"stacks-fundraising/internal/api"
	"stacks-fundraising/internal/campaign"
	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/network"
	"stacks-fundraising/internal/notify"
	"stacks-fundraising/internal/query"
	"stacks-fundraising/internal/signer"
	"stacks-fundraising/internal/txbuilder"
	"stacks-fundraising/internal/wallet"
)

var (
	infoCommand = cli.Command{
		Name:   "info",
		Usage:  "Print the campaign state",
		Action: infoAction,
	}
	purchaseStatusCommand = cli.Command{
		Name:   "purchase-status",
		Usage:  "Print the purchase record of an address",
		Flags:  []cli.Flag{requiredAddressFlag},
		Action: purchaseStatusAction,
	}
	buildCommand = cli.Command{
		Name:   "build",
		Usage:  "Print the transaction request of an action without submitting it",
		Flags:  []cli.Flag{actionFlag, addressFlag},
		Action: buildAction,
	}
	submitCommand = cli.Command{
		Name:   "submit",
		Usage:  "Build, sign and submit an action",
		Flags:  []cli.Flag{actionFlag, addressFlag, walletFlag},
		Action: submitAction,
	}
	walletsCommand = cli.Command{
		Name:   "wallets",
		Usage:  "List the devnet wallets",
		Action: walletsAction,
	}
)

// infoView is the output of the info command.
type infoView struct {
	domain.CampaignInfo
	Lifecycle domain.Lifecycle `json:"lifecycle"`
	Prices    domain.PriceData `json:"prices,omitempty"`
}

func infoAction(ctx *cli.Context) error {
	c, err := newComponents(getConfig(ctx), nil)
	if err != nil {
		return err
	}

	info, err := c.reader.CampaignInfo(ctx.Context)
	if err != nil {
		return fmt.Errorf("campaign info: %w", err)
	}
	prices, err := c.feed.Prices(ctx.Context)
	if err != nil {
		log.WithError(err).Warn("prices unavailable, omitting USD value")
	}

	withUSD := info.WithUSD(prices)
	return printJSON(infoView{CampaignInfo: withUSD, Lifecycle: withUSD.Lifecycle(), Prices: prices})
}

func purchaseStatusAction(ctx *cli.Context) error {
	c, err := newComponents(getConfig(ctx), nil)
	if err != nil {
		return err
	}

	status, err := c.reader.PurchaseStatus(ctx.Context, ctx.String(addressFlagName))
	if err != nil {
		return fmt.Errorf("purchase status: %w", err)
	}
	return printJSON(api.PurchaseResponse{HasPurchased: domain.HasPurchased(status), Status: status})
}

func parseAction(ctx *cli.Context) (txbuilder.Action, error) {
	action, ok := txbuilder.ParseAction(ctx.String(actionFlagName))
	if !ok {
		return "", fmt.Errorf("%w: %q", txbuilder.ErrUnknownAction, ctx.String(actionFlagName))
	}
	return action, nil
}

// campaignPrice reads the unit price of a purchase action from the chain.
func campaignPrice(ctx context.Context, c *components, action txbuilder.Action) (uint64, error) {
	asset, _ := action.PaymentAsset()
	info, err := c.reader.CampaignInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", campaign.ErrSalePricesNotFound, err)
	}
	return info.Price(asset), nil
}

func buildAction(ctx *cli.Context) error {
	c, err := newComponents(getConfig(ctx), nil)
	if err != nil {
		return err
	}
	action, err := parseAction(ctx)
	if err != nil {
		return err
	}

	p := txbuilder.PurchaseParams{Address: ctx.String(addressFlagName)}
	if action.IsPurchase() {
		if p.Price, err = campaignPrice(ctx.Context, c, action); err != nil {
			return err
		}
	}

	req, err := c.builder.Build(action, c.env.Network(), p)
	if err != nil {
		return err
	}
	return printJSON(req)
}

func submitAction(ctx *cli.Context) error {
	c, err := newComponents(getConfig(ctx), nil)
	if err != nil {
		return err
	}
	action, err := parseAction(ctx)
	if err != nil {
		return err
	}

	address := ctx.String(addressFlagName)
	var interactive executor.InteractiveSigner
	if c.selector != nil {
		if label := ctx.String(walletFlagName); label != "" {
			if _, err := c.selector.Select(label); err != nil {
				return err
			}
		} else if address != "" {
			if _, err := c.selector.Select(address); err != nil {
				return err
			}
		}
		address = c.selector.Current().Address
	} else {
		interactive = signer.NewTerminal(os.Stdin, os.Stdout)
	}

	exec, err := c.newExecutor(interactive, notify.LogNotifier{})
	if err != nil {
		return err
	}
	sched := query.NewScheduler(query.NewCache())
	defer sched.Stop()
	svc, err := c.newService(exec, sched, nil, nil)
	if err != nil {
		return err
	}

	if action.IsPurchase() {
		if _, err := svc.FetchCampaignInfo(ctx.Context); err != nil {
			log.WithError(err).Warn("campaign info unavailable")
		}
	}

	runCtx := wallet.WithIdentity(ctx.Context, identityFor(c.env, address))
	out := svc.Submit(runCtx, action)
	if err := printJSON(out); err != nil {
		return err
	}
	if out.State == executor.Failed {
		return cli.Exit(out.Error, 1)
	}
	return nil
}

func identityFor(env network.Environment, address string) wallet.Identity {
	switch env {
	case network.Development:
		return wallet.Identity{Devnet: address}
	case network.Test:
		return wallet.Identity{Testnet: address}
	default:
		return wallet.Identity{Mainnet: address}
	}
}

func walletsAction(ctx *cli.Context) error {
	c, err := newComponents(getConfig(ctx), nil)
	if err != nil {
		return err
	}
	if c.selector == nil {
		return errors.New("wallets are only available on devnet")
	}
	current := c.selector.Current()
	for _, w := range c.selector.Wallets() {
		marker := " "
		if w.Address == current.Address {
			marker = "*"
		}
		fmt.Printf("%s %-10s %s\n", marker, w.Label, w.Address)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
