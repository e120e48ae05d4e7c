package clarity

import (
	"fmt"
	"strings"
)

// ParseStandardPrincipal parses an account address such as ST1PQ...GZGM.
func ParseStandardPrincipal(addr string) (StandardPrincipal, error) {
	version, hash, err := DecodeAddress(addr)
	if err != nil {
		return StandardPrincipal{}, err
	}
	return StandardPrincipal{Version: version, Hash160: hash}, nil
}

// ParsePrincipal parses either an account address or a contract identifier
// of the form <address>.<contract-name>.
func ParsePrincipal(s string) (Value, error) {
	addr, name, isContract := strings.Cut(s, ".")
	issuer, err := ParseStandardPrincipal(addr)
	if err != nil {
		return nil, err
	}
	if !isContract {
		return issuer, nil
	}
	if name == "" || len(name) > 128 {
		return nil, fmt.Errorf("%w: bad contract name in %q", ErrInvalidAddress, s)
	}
	return ContractPrincipal{Issuer: issuer, Name: name}, nil
}

// Address returns the c32check address of the principal.
func (p StandardPrincipal) Address() string {
	addr, _ := EncodeAddress(p.Version, p.Hash160[:])
	return addr
}
