// Package network resolves the deployment environment and the chain
// parameters that follow from it.
package network

import "strings"

// Environment is the deployment environment the process runs in.
type Environment int

const (
	Production Environment = iota
	Test
	Development
)

// Network tags embedded in transaction requests.
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
	Devnet  = "devnet"
)

// SigningMode selects how transactions get signed.
type SigningMode int

const (
	// Interactive hands the request to an external signer and waits for a human verdict.
	Interactive SigningMode = iota
	// Direct signs with a locally held devnet key without user interaction.
	Direct
)

func (m SigningMode) String() string {
	if m == Direct {
		return "direct"
	}
	return "interactive"
}

// Params are the chain parameters for an environment.
type Params struct {
	TransactionVersion byte
	ChainID            uint32
	AddressVersion     byte // single-sig c32 version
	APIURL             string

	// SBTCAddress is the deployer of the sbtc-token contract, empty on devnet
	// where it is deployed by the local deployer.
	SBTCAddress string
}

var (
	mainnetParams = Params{
		TransactionVersion: 0x00,
		ChainID:            0x00000001,
		AddressVersion:     22,
		APIURL:             "https://api.hiro.so",
		SBTCAddress:        "SM3VDXK3WZZSA84XXFKAFAF15NNZX32CTSG82JFQ4",
	}
	testnetParams = Params{
		TransactionVersion: 0x80,
		ChainID:            0x80000000,
		AddressVersion:     26,
		APIURL:             "https://api.testnet.hiro.so",
		SBTCAddress:        "ST1F7QA2MDF17S807EPA36TSS8AMEFY4KA9TVGWXT",
	}
	devnetParams = Params{
		TransactionVersion: 0x80,
		ChainID:            0x80000000,
		AddressVersion:     26,
		APIURL:             "http://localhost:3999",
	}
)

// Resolve maps a configured value to an Environment. It never fails:
// anything it does not recognize is Production.
func Resolve(value string) Environment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case Devnet, "development", "dev", "local":
		return Development
	case Testnet, "test":
		return Test
	default:
		return Production
	}
}

// Network returns the network tag for the environment.
func (e Environment) Network() string {
	switch e {
	case Development:
		return Devnet
	case Test:
		return Testnet
	default:
		return Mainnet
	}
}

func (e Environment) String() string {
	switch e {
	case Development:
		return "development"
	case Test:
		return "test"
	default:
		return "production"
	}
}

// SigningMode returns the signing strategy the environment requires.
func (e Environment) SigningMode() SigningMode {
	if e == Development {
		return Direct
	}
	return Interactive
}

// Params returns the chain parameters for the environment.
func (e Environment) Params() Params {
	switch e {
	case Development:
		return devnetParams
	case Test:
		return testnetParams
	default:
		return mainnetParams
	}
}

// APIURL returns override when non-empty, otherwise the environment's default endpoint.
func (e Environment) APIURL(override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return e.Params().APIURL
}
