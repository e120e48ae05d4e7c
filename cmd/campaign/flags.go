package main

import "github.com/urfave/cli/v2"

const (
	networkFlagName  = "network"
	apiURLFlagName   = "api-url"
	logLevelFlagName = "log-level"
	addressFlagName  = "address"
	actionFlagName   = "action"
	walletFlagName   = "wallet"
	httpAddrFlagName = "http-addr"
)

var (
	networkFlag = &cli.StringFlag{
		Name:    networkFlagName,
		Usage:   "devnet, testnet or mainnet",
		EnvVars: []string{"STACKS_NETWORK"},
	}
	apiURLFlag = &cli.StringFlag{
		Name:  apiURLFlagName,
		Usage: "override the Stacks API endpoint of the network",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  logLevelFlagName,
		Usage: "log level (debug, info, warn, error)",
	}
	addressFlag = &cli.StringFlag{
		Name:  addressFlagName,
		Usage: "wallet address",
	}
	requiredAddressFlag = &cli.StringFlag{
		Name:     addressFlagName,
		Usage:    "wallet address",
		Required: true,
	}
	actionFlag = &cli.StringFlag{
		Name:     actionFlagName,
		Usage:    "purchase-stx, purchase-sbtc, initialize, cancel, withdraw or refund",
		Required: true,
	}
	walletFlag = &cli.StringFlag{
		Name:  walletFlagName,
		Usage: "devnet wallet label or address to sign with",
	}
	httpAddrFlag = &cli.StringFlag{
		Name:  httpAddrFlagName,
		Usage: "HTTP listen address",
	}
)
