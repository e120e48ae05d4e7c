// Package devnet provides the local development wallets and a direct caller
// that signs and broadcasts with them.
package devnet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"stacks-fundraising/internal/clarity"
	"stacks-fundraising/internal/stacks"
)

// ErrUnknownWallet is returned when selecting a wallet that is not configured.
var ErrUnknownWallet = errors.New("unknown devnet wallet")

// Default Clarinet devnet accounts.
var defaultWallets = []struct{ label, key string }{
	{"deployer", "753b7cc01a1a2e86221266a154af739463fce51219d97e4f856cd7200c3bd2a601"},
	{"wallet_1", "7287ba251d44a4d3fd9276c88ce34c5c52a038955511cccaf77e61068649c17801"},
	{"wallet_2", "530d9f61984c888536871c6573073bdfc0058896dc1adfe9a6a10dfacadc209101"},
	{"wallet_3", "d655b2523bcd65e34889725c73064feb17ceb796831c0e111ba1a552b0f31b3901"},
}

// Wallet is a local account with its signing key.
type Wallet struct {
	Label   string `json:"label"`
	Address string `json:"address"`
	key     *btcec.PrivateKey
}

// PrivateKey returns the wallet signing key.
func (w Wallet) PrivateKey() *btcec.PrivateKey {
	return w.key
}

// ParseWallet derives a wallet from a hex secret key. A trailing 01 byte
// marks a compressed key and is accepted.
func ParseWallet(label, hexKey string, addressVersion byte) (Wallet, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: decode key: %w", label, err)
	}
	if len(raw) == 33 && raw[32] == 0x01 {
		raw = raw[:32]
	}
	if len(raw) != 32 {
		return Wallet{}, fmt.Errorf("wallet %s: key must be 32 bytes, got %d", label, len(raw))
	}

	key, _ := btcec.PrivKeyFromBytes(raw)
	hash := stacks.SignerHash(key.PubKey())
	addr, err := clarity.EncodeAddress(addressVersion, hash[:])
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: %w", label, err)
	}
	return Wallet{Label: label, Address: addr, key: key}, nil
}

// ParseWallets parses label:hexkey specs. An empty list yields the default
// devnet accounts.
func ParseWallets(specs []string, addressVersion byte) ([]Wallet, error) {
	if len(specs) == 0 {
		return DefaultWallets(addressVersion)
	}
	wallets := make([]Wallet, 0, len(specs))
	for i, spec := range specs {
		label, key, ok := strings.Cut(strings.TrimSpace(spec), ":")
		if !ok {
			label, key = fmt.Sprintf("wallet_%d", i), spec
		}
		w, err := ParseWallet(label, key, addressVersion)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// DefaultWallets returns the default devnet accounts.
func DefaultWallets(addressVersion byte) ([]Wallet, error) {
	wallets := make([]Wallet, 0, len(defaultWallets))
	for _, d := range defaultWallets {
		w, err := ParseWallet(d.label, d.key, addressVersion)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// Selector holds the devnet wallets and the one currently in use.
type Selector struct {
	mu      sync.RWMutex
	wallets []Wallet
	current int
}

// NewSelector creates a selector with the first wallet selected.
func NewSelector(wallets []Wallet) (*Selector, error) {
	if len(wallets) == 0 {
		return nil, errors.New("no devnet wallets configured")
	}
	return &Selector{wallets: wallets}, nil
}

// Wallets returns the configured wallets.
func (s *Selector) Wallets() []Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Wallet, len(s.wallets))
	copy(out, s.wallets)
	return out
}

// Current returns the selected wallet.
func (s *Selector) Current() Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallets[s.current]
}

// Select makes the wallet with the given label or address current.
func (s *Selector) Select(labelOrAddress string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.wallets {
		if w.Label == labelOrAddress || w.Address == labelOrAddress {
			s.current = i
			return w, nil
		}
	}
	return Wallet{}, fmt.Errorf("%w: %s", ErrUnknownWallet, labelOrAddress)
}
