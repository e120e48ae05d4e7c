package clarity

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"
)

// maxDepth bounds nesting of composite values.
const maxDepth = 32

// DecodeHex decodes a hex string (with or without 0x prefix) into a Value.
func DecodeHex(s string) (Value, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Deserialize(b)
}

// Deserialize decodes b into a Value. The whole input must be consumed.
func Deserialize(b []byte) (Value, error) {
	d := &decoder{buf: b}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(d.buf)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.pos < n {
		return nil, fmt.Errorf("%w: unexpected end of input at offset %d", ErrMalformed, d.pos)
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) value(depth int) (Value, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, maxDepth)
	}

	prefix, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch Type(prefix) {
	case TypeInt:
		b, err := d.take(16)
		if err != nil {
			return nil, err
		}
		return Int{V: fromTwosComplement(b)}, nil

	case TypeUInt:
		b, err := d.take(16)
		if err != nil {
			return nil, err
		}
		return UInt{V: new(big.Int).SetBytes(b)}, nil

	case TypeBuffer:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return nil, err
		}
		return Buffer(append([]byte(nil), b...)), nil

	case TypeTrue:
		return Bool(true), nil

	case TypeFalse:
		return Bool(false), nil

	case TypeStandardPrincipal:
		return d.standardPrincipal()

	case TypeContractPrincipal:
		issuer, err := d.standardPrincipal()
		if err != nil {
			return nil, err
		}
		name, err := d.shortString()
		if err != nil {
			return nil, err
		}
		return ContractPrincipal{Issuer: issuer, Name: name}, nil

	case TypeResponseOk, TypeResponseErr, TypeSome:
		inner, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		switch Type(prefix) {
		case TypeResponseOk:
			return ResponseOk{Value: inner}, nil
		case TypeResponseErr:
			return ResponseErr{Value: inner}, nil
		default:
			return Some{Value: inner}, nil
		}

	case TypeNone:
		return None{}, nil

	case TypeList:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		// each element takes at least one byte
		if int(n) > len(d.buf)-d.pos {
			return nil, fmt.Errorf("%w: list length %d exceeds input", ErrMalformed, n)
		}
		list := make(List, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case TypeTuple:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		if int(n) > len(d.buf)-d.pos {
			return nil, fmt.Errorf("%w: tuple size %d exceeds input", ErrMalformed, n)
		}
		tuple := make(Tuple, n)
		for i := uint32(0); i < n; i++ {
			name, err := d.shortString()
			if err != nil {
				return nil, err
			}
			if _, dup := tuple[name]; dup {
				return nil, fmt.Errorf("%w: duplicate tuple field %q", ErrMalformed, name)
			}
			v, err := d.value(depth + 1)
			if err != nil {
				return nil, err
			}
			tuple[name] = v
		}
		return tuple, nil

	case TypeStringASCII:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return nil, err
		}
		for _, c := range b {
			if c > 0x7e || (c < 0x20 && c != '\t' && c != '\n' && c != '\r') {
				return nil, fmt.Errorf("%w: non-ascii byte 0x%02x in string-ascii", ErrMalformed, c)
			}
		}
		return StringASCII(b), nil

	case TypeStringUTF8:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n))
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("%w: invalid utf-8 in string-utf8", ErrMalformed)
		}
		return StringUTF8(b), nil
	}

	return nil, fmt.Errorf("%w: unknown type prefix 0x%02x at offset %d", ErrMalformed, prefix, d.pos-1)
}

func (d *decoder) standardPrincipal() (StandardPrincipal, error) {
	b, err := d.take(21)
	if err != nil {
		return StandardPrincipal{}, err
	}
	p := StandardPrincipal{Version: b[0]}
	copy(p.Hash160[:], b[1:])
	return p, nil
}

func (d *decoder) shortString() (string, error) {
	n, err := d.readByte()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromTwosComplement(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return v
}
