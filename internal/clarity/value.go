// Package clarity implements the consensus serialization of Clarity values
// and the c32check principal encoding used by Stacks.
package clarity

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Type is the one-byte type prefix of a serialized Clarity value.
type Type byte

const (
	TypeInt               Type = 0x00
	TypeUInt              Type = 0x01
	TypeBuffer            Type = 0x02
	TypeTrue              Type = 0x03
	TypeFalse             Type = 0x04
	TypeStandardPrincipal Type = 0x05
	TypeContractPrincipal Type = 0x06
	TypeResponseOk        Type = 0x07
	TypeResponseErr       Type = 0x08
	TypeNone              Type = 0x09
	TypeSome              Type = 0x0a
	TypeList              Type = 0x0b
	TypeTuple             Type = 0x0c
	TypeStringASCII       Type = 0x0d
	TypeStringUTF8        Type = 0x0e
)

var typeNames = map[Type]string{
	TypeInt:               "int",
	TypeUInt:              "uint",
	TypeBuffer:            "buffer",
	TypeTrue:              "bool",
	TypeFalse:             "bool",
	TypeStandardPrincipal: "principal",
	TypeContractPrincipal: "principal",
	TypeResponseOk:        "response",
	TypeResponseErr:       "response",
	TypeNone:              "optional",
	TypeSome:              "optional",
	TypeList:              "list",
	TypeTuple:             "tuple",
	TypeStringASCII:       "string-ascii",
	TypeStringUTF8:        "string-utf8",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Value is a decoded Clarity value.
type Value interface {
	Type() Type
	String() string
}

// Int is a signed 128-bit integer.
type Int struct{ V *big.Int }

// UInt is an unsigned 128-bit integer.
type UInt struct{ V *big.Int }

// Buffer is a byte buffer.
type Buffer []byte

// Bool is a boolean.
type Bool bool

// StandardPrincipal is an account principal.
type StandardPrincipal struct {
	Version byte
	Hash160 [20]byte
}

// ContractPrincipal is a contract identifier.
type ContractPrincipal struct {
	Issuer StandardPrincipal
	Name   string
}

// ResponseOk is the ok branch of a response.
type ResponseOk struct{ Value Value }

// ResponseErr is the err branch of a response.
type ResponseErr struct{ Value Value }

// None is an empty optional.
type None struct{}

// Some is a present optional.
type Some struct{ Value Value }

// List is a homogeneous list.
type List []Value

// Tuple is a named-field record.
type Tuple map[string]Value

// StringASCII is an ASCII string.
type StringASCII string

// StringUTF8 is a UTF-8 string.
type StringUTF8 string

// NewUInt returns a UInt holding v.
func NewUInt(v uint64) UInt { return UInt{V: new(big.Int).SetUint64(v)} }

// NewInt returns an Int holding v.
func NewInt(v int64) Int { return Int{V: big.NewInt(v)} }

func (Int) Type() Type               { return TypeInt }
func (UInt) Type() Type              { return TypeUInt }
func (Buffer) Type() Type            { return TypeBuffer }
func (StandardPrincipal) Type() Type { return TypeStandardPrincipal }
func (ContractPrincipal) Type() Type { return TypeContractPrincipal }
func (ResponseOk) Type() Type        { return TypeResponseOk }
func (ResponseErr) Type() Type       { return TypeResponseErr }
func (None) Type() Type              { return TypeNone }
func (Some) Type() Type              { return TypeSome }
func (List) Type() Type              { return TypeList }
func (Tuple) Type() Type             { return TypeTuple }
func (StringASCII) Type() Type       { return TypeStringASCII }
func (StringUTF8) Type() Type        { return TypeStringUTF8 }

func (b Bool) Type() Type {
	if b {
		return TypeTrue
	}
	return TypeFalse
}

func (v Int) String() string  { return v.V.String() }
func (v UInt) String() string { return "u" + v.V.String() }
func (b Buffer) String() string {
	return "0x" + hex.EncodeToString(b)
}
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (p StandardPrincipal) String() string {
	addr, err := EncodeAddress(p.Version, p.Hash160[:])
	if err != nil {
		return "'<invalid principal>"
	}
	return "'" + addr
}
func (p ContractPrincipal) String() string { return p.Issuer.String() + "." + p.Name }
func (r ResponseOk) String() string        { return "(ok " + r.Value.String() + ")" }
func (r ResponseErr) String() string       { return "(err " + r.Value.String() + ")" }
func (None) String() string                { return "none" }
func (s Some) String() string              { return "(some " + s.Value.String() + ")" }
func (s StringASCII) String() string       { return fmt.Sprintf("%q", string(s)) }
func (s StringUTF8) String() string        { return "u" + fmt.Sprintf("%q", string(s)) }

func (l List) String() string {
	parts := make([]string, 0, len(l)+1)
	parts = append(parts, "list")
	for _, v := range l {
		parts = append(parts, v.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (t Tuple) String() string {
	parts := []string{"tuple"}
	for _, k := range t.Keys() {
		parts = append(parts, "("+k+" "+t[k].String()+")")
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Keys returns the tuple field names in serialization order.
func (t Tuple) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
