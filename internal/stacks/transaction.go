package stacks

import (
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"

	"stacks-fundraising/internal/clarity"
)

// Transaction wire constants.
const (
	authStandard          byte = 0x04
	hashModeP2PKH         byte = 0x00
	keyEncodingCompressed byte = 0x00
	anchorModeAny         byte = 0x03
	payloadContractCall   byte = 0x02

	pcTypeSTX byte = 0x00
	pcTypeFT  byte = 0x01

	pcPrincipalStandard byte = 0x02
	pcPrincipalContract byte = 0x03

	maxNameLength = 128
)

// ErrInvalidTransaction is returned for a transaction that cannot be encoded.
var ErrInvalidTransaction = errors.New("invalid transaction")

// PostConditionMode controls whether unlisted transfers abort the transaction.
type PostConditionMode byte

const (
	PostConditionModeAllow PostConditionMode = 0x01
	PostConditionModeDeny  PostConditionMode = 0x02
)

// ConditionCode compares the transferred amount against PostCondition.Amount.
type ConditionCode byte

const (
	ConditionEq   ConditionCode = 0x01
	ConditionGt   ConditionCode = 0x02
	ConditionGtEq ConditionCode = 0x03
	ConditionLt   ConditionCode = 0x04
	ConditionLtEq ConditionCode = 0x05
)

// ParseConditionCode maps a comparator name to its wire code.
func ParseConditionCode(s string) (ConditionCode, error) {
	switch s {
	case "eq":
		return ConditionEq, nil
	case "gt":
		return ConditionGt, nil
	case "gte":
		return ConditionGtEq, nil
	case "lt":
		return ConditionLt, nil
	case "lte":
		return ConditionLtEq, nil
	}
	return 0, fmt.Errorf("%w: condition %q", ErrInvalidTransaction, s)
}

// AssetInfo names a fungible token.
type AssetInfo struct {
	Contract  clarity.ContractPrincipal
	AssetName string
}

// PostCondition bounds an amount a principal may send. Asset is nil for STX.
type PostCondition struct {
	Principal clarity.Value // StandardPrincipal or ContractPrincipal
	Asset     *AssetInfo
	Code      ConditionCode
	Amount    uint64
}

// ContractCall is the payload of a contract-call transaction.
type ContractCall struct {
	Contract     clarity.ContractPrincipal
	FunctionName string
	Args         []clarity.Value
}

// ContractCallTx is a single-signature contract-call transaction.
type ContractCallTx struct {
	Version           byte
	ChainID           uint32
	Signer            [20]byte // hash160 of the compressed public key
	Nonce             uint64
	Fee               uint64
	Signature         [65]byte // recovery id followed by r and s
	PostConditionMode PostConditionMode
	PostConditions    []PostCondition
	Payload           ContractCall
}

// Serialize encodes the transaction in consensus format.
func (tx *ContractCallTx) Serialize() ([]byte, error) {
	return tx.encode(false)
}

// TxID returns the 0x-prefixed transaction id.
func (tx *ContractCallTx) TxID() (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return "", err
	}
	sum := sha512.Sum512_256(raw)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// SigHash returns the hash the origin signs: the id of the transaction with
// its authorization cleared, extended by the auth type, fee and nonce.
func (tx *ContractCallTx) SigHash() ([32]byte, error) {
	cleared, err := tx.encode(true)
	if err != nil {
		return [32]byte{}, err
	}
	initial := sha512.Sum512_256(cleared)

	buf := make([]byte, 0, 32+1+8+8)
	buf = append(buf, initial[:]...)
	buf = append(buf, authStandard)
	buf = binary.BigEndian.AppendUint64(buf, tx.Fee)
	buf = binary.BigEndian.AppendUint64(buf, tx.Nonce)
	return sha512.Sum512_256(buf), nil
}

// Sign signs the transaction with key, which must match Signer.
func (tx *ContractCallTx) Sign(key *btcec.PrivateKey) error {
	if SignerHash(key.PubKey()) != tx.Signer {
		return fmt.Errorf("%w: key does not match signer", ErrInvalidTransaction)
	}
	hash, err := tx.SigHash()
	if err != nil {
		return err
	}
	compact := ecdsa.SignCompact(key, hash[:], true)
	// compact[0] is 27 + recovery id + 4 for compressed keys.
	tx.Signature[0] = compact[0] - 31
	copy(tx.Signature[1:], compact[1:])
	return nil
}

// SignerHash returns the hash160 identifying pub as a signer.
func SignerHash(pub *btcec.PublicKey) [20]byte {
	var h [20]byte
	copy(h[:], btcutil.Hash160(pub.SerializeCompressed()))
	return h
}

// RecoverSigner returns the public key that produced the signature.
func (tx *ContractCallTx) RecoverSigner() (*btcec.PublicKey, error) {
	hash, err := tx.SigHash()
	if err != nil {
		return nil, err
	}
	compact := make([]byte, 65)
	compact[0] = tx.Signature[0] + 31
	copy(compact[1:], tx.Signature[1:])
	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return nil, fmt.Errorf("recover signer: %w", err)
	}
	return pub, nil
}

func (tx *ContractCallTx) encode(cleared bool) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, tx.Version)
	buf = binary.BigEndian.AppendUint32(buf, tx.ChainID)

	buf = append(buf, authStandard, hashModeP2PKH)
	buf = append(buf, tx.Signer[:]...)
	if cleared {
		buf = binary.BigEndian.AppendUint64(buf, 0)
		buf = binary.BigEndian.AppendUint64(buf, 0)
		buf = append(buf, keyEncodingCompressed)
		buf = append(buf, make([]byte, 65)...)
	} else {
		buf = binary.BigEndian.AppendUint64(buf, tx.Nonce)
		buf = binary.BigEndian.AppendUint64(buf, tx.Fee)
		buf = append(buf, keyEncodingCompressed)
		buf = append(buf, tx.Signature[:]...)
	}

	buf = append(buf, anchorModeAny)

	mode := tx.PostConditionMode
	if mode != PostConditionModeAllow && mode != PostConditionModeDeny {
		return nil, fmt.Errorf("%w: post-condition mode %d", ErrInvalidTransaction, mode)
	}
	buf = append(buf, byte(mode))

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(tx.PostConditions)))
	for i, pc := range tx.PostConditions {
		var err error
		if buf, err = appendPostCondition(buf, pc); err != nil {
			return nil, fmt.Errorf("post-condition %d: %w", i, err)
		}
	}

	return appendContractCall(buf, tx.Payload)
}

func appendPostCondition(buf []byte, pc PostCondition) ([]byte, error) {
	if pc.Code < ConditionEq || pc.Code > ConditionLtEq {
		return nil, fmt.Errorf("%w: condition code %d", ErrInvalidTransaction, pc.Code)
	}
	if pc.Asset == nil {
		buf = append(buf, pcTypeSTX)
	} else {
		buf = append(buf, pcTypeFT)
	}

	switch p := pc.Principal.(type) {
	case clarity.StandardPrincipal:
		buf = append(buf, pcPrincipalStandard, p.Version)
		buf = append(buf, p.Hash160[:]...)
	case clarity.ContractPrincipal:
		buf = append(buf, pcPrincipalContract, p.Issuer.Version)
		buf = append(buf, p.Issuer.Hash160[:]...)
		var err error
		if buf, err = appendName(buf, p.Name); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: post-condition principal %T", ErrInvalidTransaction, pc.Principal)
	}

	if pc.Asset != nil {
		buf = append(buf, pc.Asset.Contract.Issuer.Version)
		buf = append(buf, pc.Asset.Contract.Issuer.Hash160[:]...)
		var err error
		if buf, err = appendName(buf, pc.Asset.Contract.Name); err != nil {
			return nil, err
		}
		if buf, err = appendName(buf, pc.Asset.AssetName); err != nil {
			return nil, err
		}
	}

	buf = append(buf, byte(pc.Code))
	return binary.BigEndian.AppendUint64(buf, pc.Amount), nil
}

func appendContractCall(buf []byte, call ContractCall) ([]byte, error) {
	buf = append(buf, payloadContractCall, call.Contract.Issuer.Version)
	buf = append(buf, call.Contract.Issuer.Hash160[:]...)
	var err error
	if buf, err = appendName(buf, call.Contract.Name); err != nil {
		return nil, err
	}
	if buf, err = appendName(buf, call.FunctionName); err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(call.Args)))
	for _, arg := range call.Args {
		buf = append(buf, clarity.Serialize(arg)...)
	}
	return buf, nil
}

func appendName(buf []byte, name string) ([]byte, error) {
	if name == "" || len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name %q", ErrInvalidTransaction, name)
	}
	buf = append(buf, byte(len(name)))
	return append(buf, name...), nil
}
