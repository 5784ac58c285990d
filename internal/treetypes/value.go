// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package treetypes

import "errors"

var (
	ErrUnsupportedType  = errors.New("unsupported branch type")
	ErrUnknownType      = errors.New("unknown type")
	ErrConvert          = errors.New("cannot convert value")
	ErrNegativeUnsigned = errors.New("negative value assigned to unsigned type")
	ErrOverflow         = errors.New("value overflows type")
	ErrLength           = errors.New("invalid length")
	ErrIndexOutOfRange  = errors.New("index out of range")
)

// Elem is the set of Go element types a branch value can hold.
type Elem interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

// Value is a typed branch value.
type Value interface {
	// Info describes the element type. It is nil for strings.
	Info() *Info
	// TypeName is the branch type this value was built for, e.g.
	// "Int_t", "Float_t[4]", "Float_t[]" or "vector<float>".
	TypeName() string
	// Reset restores the default value.
	Reset()
	// Set assigns v, converting it to the element type.
	Set(v any) error
	// Interface returns the current value. Array values alias the
	// underlying storage and are only valid until the next entry is read.
	Interface() any
	// Target is the pointer a reader decodes entries into.
	Target() any
	String() string
}

// Indexed is implemented by array values.
type Indexed interface {
	Value
	Len() int
	At(i int) (any, error)
	SetAt(i int, v any) error
	// Fixed reports whether the length is part of the type.
	Fixed() bool
}
