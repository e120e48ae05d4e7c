package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"devnet", Development},
		{"Development", Development},
		{" devnet ", Development},
		{"testnet", Test},
		{"test", Test},
		{"mainnet", Production},
		{"", Production},
		{"something-else", Production},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.in), "Resolve(%q)", tt.in)
	}
}

func TestEnvironment_NetworkAndSigning(t *testing.T) {
	assert.Equal(t, Devnet, Development.Network())
	assert.Equal(t, Testnet, Test.Network())
	assert.Equal(t, Mainnet, Production.Network())

	assert.Equal(t, Direct, Development.SigningMode())
	assert.Equal(t, Interactive, Test.SigningMode())
	assert.Equal(t, Interactive, Production.SigningMode())
}

func TestEnvironment_Params(t *testing.T) {
	assert.Equal(t, byte(22), Production.Params().AddressVersion)
	assert.Equal(t, uint32(1), Production.Params().ChainID)
	assert.Equal(t, byte(26), Test.Params().AddressVersion)
	assert.Equal(t, byte(0x80), Development.Params().TransactionVersion)
	assert.Equal(t, "SM3VDXK3WZZSA84XXFKAFAF15NNZX32CTSG82JFQ4", Production.Params().SBTCAddress)
	assert.Empty(t, Development.Params().SBTCAddress)

	assert.Equal(t, "http://localhost:3999", Development.APIURL(""))
	assert.Equal(t, "http://node:3999", Development.APIURL("http://node:3999/"))
}
