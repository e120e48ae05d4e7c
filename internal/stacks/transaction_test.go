package stacks

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-fundraising/internal/clarity"
)

// Clarinet devnet deployer account.
const deployerKey = "753b7cc01a1a2e86221266a154af739463fce51219d97e4f856cd7200c3bd2a6"

func testKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	raw, err := hex.DecodeString(deployerKey)
	require.NoError(t, err)
	key, _ := btcec.PrivKeyFromBytes(raw)
	return key
}

func testTx(t *testing.T) *ContractCallTx {
	t.Helper()
	owner, err := clarity.ParseStandardPrincipal(deployer)
	require.NoError(t, err)

	return &ContractCallTx{
		Version:           0x80,
		ChainID:           0x80000000,
		Signer:            owner.Hash160,
		Nonce:             3,
		Fee:               10000,
		PostConditionMode: PostConditionModeDeny,
		PostConditions: []PostCondition{{
			Principal: owner,
			Code:      ConditionEq,
			Amount:    1_000_000,
		}},
		Payload: ContractCall{
			Contract:     clarity.ContractPrincipal{Issuer: owner, Name: "fundraising"},
			FunctionName: "purchase-with-stx",
		},
	}
}

func TestSignerHash_MatchesAddress(t *testing.T) {
	owner, err := clarity.ParseStandardPrincipal(deployer)
	require.NoError(t, err)
	assert.Equal(t, owner.Hash160, SignerHash(testKey(t).PubKey()))
}

func TestContractCallTx_Layout(t *testing.T) {
	raw, err := testTx(t).Serialize()
	require.NoError(t, err)

	h := hex.EncodeToString(raw)
	signer := "6d78de7b0625dfbfc16c3a8a5735f6dc3dc3f2ce"

	header := "80" + "80000000" + "04" + "00" + signer +
		"0000000000000003" + "0000000000002710" + "00"
	require.True(t, strings.HasPrefix(h, header), h)

	rest := h[len(header)+130:]
	expected := "03" + "02" + "00000001" +
		"00" + "02" + "1a" + signer + "01" + "00000000000f4240" +
		"02" + "1a" + signer + "0b" + hex.EncodeToString([]byte("fundraising")) +
		"11" + hex.EncodeToString([]byte("purchase-with-stx")) + "00000000"
	assert.Equal(t, expected, rest)
}

func TestContractCallTx_FungiblePostCondition(t *testing.T) {
	tx := testTx(t)
	owner := tx.Payload.Contract.Issuer
	tx.PostConditions = []PostCondition{{
		Principal: owner,
		Asset: &AssetInfo{
			Contract:  clarity.ContractPrincipal{Issuer: owner, Name: "sbtc-token"},
			AssetName: "sbtc-token",
		},
		Code:   ConditionEq,
		Amount: 1500,
	}}

	raw, err := tx.Serialize()
	require.NoError(t, err)

	name := hex.EncodeToString([]byte("sbtc-token"))
	pc := "01" + "02" + "1a" + "6d78de7b0625dfbfc16c3a8a5735f6dc3dc3f2ce" +
		"1a" + "6d78de7b0625dfbfc16c3a8a5735f6dc3dc3f2ce" + "0a" + name + "0a" + name +
		"01" + "00000000000005dc"
	assert.Contains(t, hex.EncodeToString(raw), "00000001"+pc)
}

func TestContractCallTx_SignAndRecover(t *testing.T) {
	tx := testTx(t)
	key := testKey(t)

	before, err := tx.SigHash()
	require.NoError(t, err)
	unsignedID, err := tx.TxID()
	require.NoError(t, err)

	require.NoError(t, tx.Sign(key))

	after, err := tx.SigHash()
	require.NoError(t, err)
	assert.Equal(t, before, after, "signature must not affect the signed hash")

	signedID, err := tx.TxID()
	require.NoError(t, err)
	assert.NotEqual(t, unsignedID, signedID)
	assert.True(t, strings.HasPrefix(signedID, "0x"))
	assert.Len(t, signedID, 66)

	assert.LessOrEqual(t, tx.Signature[0], byte(3))
	pub, err := tx.RecoverSigner()
	require.NoError(t, err)
	assert.True(t, pub.IsEqual(key.PubKey()))
}

func TestContractCallTx_SigHashCoversNonce(t *testing.T) {
	a := testTx(t)
	b := testTx(t)
	b.Nonce++

	ha, err := a.SigHash()
	require.NoError(t, err)
	hb, err := b.SigHash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestContractCallTx_SignRejectsForeignKey(t *testing.T) {
	tx := testTx(t)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	assert.ErrorIs(t, tx.Sign(other), ErrInvalidTransaction)
}

func TestContractCallTx_Invalid(t *testing.T) {
	tx := testTx(t)
	tx.Payload.FunctionName = ""
	_, err := tx.Serialize()
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	tx = testTx(t)
	tx.PostConditionMode = 0
	_, err = tx.Serialize()
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	tx = testTx(t)
	tx.PostConditions[0].Principal = clarity.Bool(true)
	_, err = tx.Serialize()
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestParseConditionCode(t *testing.T) {
	code, err := ParseConditionCode("eq")
	require.NoError(t, err)
	assert.Equal(t, ConditionEq, code)

	_, err = ParseConditionCode("approx")
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}
