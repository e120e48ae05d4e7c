package clarity

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var big32 = big.NewInt(32)

// c32Encode encodes data in Crockford base32. Each leading zero byte becomes
// a leading '0' character.
func c32Encode(data []byte) string {
	n := new(big.Int).SetBytes(data)
	mod := new(big.Int)

	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, big32, mod)
		digits = append(digits, c32Alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		digits = append(digits, '0')
	}

	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

func c32Normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "O", "0")
	s = strings.ReplaceAll(s, "L", "1")
	return strings.ReplaceAll(s, "I", "1")
}

// c32Decode is the inverse of c32Encode.
func c32Decode(s string) ([]byte, error) {
	s = c32Normalize(s)

	leading := len(s) - len(strings.TrimLeft(s, "0"))
	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(c32Alphabet, s[i])
		if idx < 0 {
			return nil, fmt.Errorf("%w: invalid c32 character %q", ErrInvalidAddress, s[i])
		}
		n.Mul(n, big32)
		n.Add(n, big.NewInt(int64(idx)))
	}

	return append(make([]byte, leading), n.Bytes()...), nil
}

func c32Checksum(version byte, data []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, data...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

// EncodeAddress returns the c32check address for a version and hash160.
func EncodeAddress(version byte, hash160 []byte) (string, error) {
	if version >= 32 {
		return "", fmt.Errorf("%w: version %d out of range", ErrInvalidAddress, version)
	}
	if len(hash160) != 20 {
		return "", fmt.Errorf("%w: hash160 must be 20 bytes, got %d", ErrInvalidAddress, len(hash160))
	}
	payload := append(append([]byte(nil), hash160...), c32Checksum(version, hash160)...)
	return "S" + string(c32Alphabet[version]) + c32Encode(payload), nil
}

// DecodeAddress validates a c32check address and returns its version and hash160.
func DecodeAddress(addr string) (byte, [20]byte, error) {
	var hash [20]byte

	if len(addr) < 3 || addr[0] != 'S' {
		return 0, hash, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	version := strings.IndexByte(c32Alphabet, c32Normalize(addr[1:2])[0])
	if version < 0 {
		return 0, hash, fmt.Errorf("%w: bad version character in %q", ErrInvalidAddress, addr)
	}

	data, err := c32Decode(addr[2:])
	if err != nil {
		return 0, hash, err
	}
	if len(data) != 24 {
		return 0, hash, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, addr, len(data))
	}
	if !bytes.Equal(c32Checksum(byte(version), data[:20]), data[20:]) {
		return 0, hash, fmt.Errorf("%w: checksum mismatch for %q", ErrInvalidAddress, addr)
	}

	copy(hash[:], data[:20])
	return byte(version), hash, nil
}
