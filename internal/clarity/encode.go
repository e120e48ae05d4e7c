package clarity

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
)

// Serialize returns the consensus serialization of v.
func Serialize(v Value) []byte {
	return appendValue(nil, v)
}

// EncodeHex returns the 0x-prefixed hex serialization of v, the form the
// read-only call endpoint expects for arguments.
func EncodeHex(v Value) string {
	return "0x" + hex.EncodeToString(Serialize(v))
}

func appendValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Type()))

	switch val := v.(type) {
	case Int:
		buf = append(buf, toTwosComplement(val.V)...)
	case UInt:
		buf = append(buf, toFixed16(val.V)...)
	case Buffer:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val)))
		buf = append(buf, val...)
	case Bool, None:
	case StandardPrincipal:
		buf = appendStandardPrincipal(buf, val)
	case ContractPrincipal:
		buf = appendStandardPrincipal(buf, val.Issuer)
		buf = append(buf, byte(len(val.Name)))
		buf = append(buf, val.Name...)
	case ResponseOk:
		buf = appendValue(buf, val.Value)
	case ResponseErr:
		buf = appendValue(buf, val.Value)
	case Some:
		buf = appendValue(buf, val.Value)
	case List:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val)))
		for _, item := range val {
			buf = appendValue(buf, item)
		}
	case Tuple:
		keys := val.Keys()
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(keys)))
		for _, k := range keys {
			buf = append(buf, byte(len(k)))
			buf = append(buf, k...)
			buf = appendValue(buf, val[k])
		}
	case StringASCII:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val)))
		buf = append(buf, val...)
	case StringUTF8:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val)))
		buf = append(buf, val...)
	}
	return buf
}

func appendStandardPrincipal(buf []byte, p StandardPrincipal) []byte {
	buf = append(buf, p.Version)
	return append(buf, p.Hash160[:]...)
}

func toFixed16(v *big.Int) []byte {
	out := make([]byte, 16)
	if v != nil {
		v.FillBytes(out)
	}
	return out
}

func toTwosComplement(v *big.Int) []byte {
	if v == nil || v.Sign() >= 0 {
		return toFixed16(v)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	return toFixed16(new(big.Int).Add(mod, v))
}
