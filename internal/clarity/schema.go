package clarity

import "fmt"

// AsTuple asserts v is a tuple.
func AsTuple(v Value) (Tuple, error) {
	t, ok := v.(Tuple)
	if !ok {
		return nil, fmt.Errorf("%w: want tuple, got %s", ErrUnexpectedType, v.Type())
	}
	return t, nil
}

// AsUint64 asserts v is a uint that fits in 64 bits.
func AsUint64(v Value) (uint64, error) {
	u, ok := v.(UInt)
	if !ok {
		return 0, fmt.Errorf("%w: want uint, got %s", ErrUnexpectedType, v.Type())
	}
	if u.V == nil || u.V.Sign() < 0 || u.V.BitLen() > 64 {
		return 0, fmt.Errorf("%w: uint %s does not fit in 64 bits", ErrUnexpectedType, u.V)
	}
	return u.V.Uint64(), nil
}

// Field returns the named field or ErrMissingField.
func (t Tuple) Field(name string) (Value, error) {
	v, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	return v, nil
}

// Uint64 returns the named uint field.
func (t Tuple) Uint64(name string) (uint64, error) {
	v, err := t.Field(name)
	if err != nil {
		return 0, err
	}
	n, err := AsUint64(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return n, nil
}

// Bool returns the named bool field.
func (t Tuple) Bool(name string) (bool, error) {
	v, err := t.Field(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(Bool)
	if !ok {
		return false, fmt.Errorf("field %q: %w: want bool, got %s", name, ErrUnexpectedType, v.Type())
	}
	return bool(b), nil
}
