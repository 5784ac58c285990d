// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package treetypes

import (
	"bytes"
	"fmt"
)

// Byte is the element type of character arrays.
type Byte interface {
	~int8 | ~uint8
}

// CharArray is a fixed, NUL-terminated character string stored in a
// Char_t[n] or UChar_t[n] leaf. The last slot is reserved for the
// terminator, so at most n-1 characters fit.
type CharArray[T Byte] struct {
	arr *Array[T]
}

// NewCharArray returns a character array of n bytes (n >= 2).
func NewCharArray[T Byte](n int) (*CharArray[T], error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: char array length must be at least 2 to include null-termination, got %d", ErrLength, n)
	}
	arr, err := NewArray[T](n, 0)
	if err != nil {
		return nil, err
	}
	return &CharArray[T]{arr: arr}, nil
}

func (c *CharArray[T]) Info() *Info      { return c.arr.info }
func (c *CharArray[T]) TypeName() string { return c.arr.typeName }
func (c *CharArray[T]) Target() any      { return c.arr.target }
func (c *CharArray[T]) Len() int         { return c.arr.Len() }
func (c *CharArray[T]) Fixed() bool      { return true }
func (c *CharArray[T]) Interface() any   { return c.Str() }

func (c *CharArray[T]) At(i int) (any, error)    { return c.arr.At(i) }
func (c *CharArray[T]) SetAt(i int, v any) error { return c.arr.SetAt(i, v) }

// Reset zeroes every byte.
func (c *CharArray[T]) Reset() {
	clear(c.arr.data)
}

// Str decodes the bytes up to the first NUL.
func (c *CharArray[T]) Str() string {
	raw := c.bytes()
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}

func (c *CharArray[T]) bytes() []byte {
	out := make([]byte, len(c.arr.data))
	for i, b := range c.arr.data {
		out[i] = byte(b)
	}
	return out
}

// Set stores a string (or byte slice) followed by the terminator.
func (c *CharArray[T]) Set(v any) error {
	var s []byte
	switch x := v.(type) {
	case string:
		s = []byte(x)
	case []byte:
		s = x
	case *CharArray[T]:
		s = []byte(x.Str())
	default:
		return fmt.Errorf("%w: %T to %s", ErrConvert, v, c.arr.typeName)
	}
	if len(s) >= len(c.arr.data) {
		return fmt.Errorf("%w: string of length %d is too long to fit in array of length %d with null-termination",
			ErrLength, len(s), len(c.arr.data))
	}
	for i, b := range s {
		c.arr.data[i] = T(b)
	}
	c.arr.data[len(s)] = 0
	return nil
}

func (c *CharArray[T]) String() string {
	return fmt.Sprintf("%sArray[%q]", c.arr.info.Label, c.Str())
}

// String holds a TString / std::string / C-string leaf.
type String struct {
	v         string
	def       string
	typeName  string
	resetable bool
}

// NewString returns a string value resetting to def.
func NewString(def string) *String {
	return &String{v: def, def: def, typeName: "string", resetable: true}
}

func (s *String) Info() *Info      { return nil }
func (s *String) TypeName() string { return s.typeName }
func (s *String) Value() string    { return s.v }
func (s *String) Interface() any   { return s.v }
func (s *String) Target() any      { return &s.v }

func (s *String) Reset() {
	if s.resetable {
		s.v = s.def
	}
}

func (s *String) Set(v any) error {
	switch x := v.(type) {
	case string:
		s.v = x
	case []byte:
		s.v = string(x)
	case *String:
		s.v = x.v
	default:
		return fmt.Errorf("%w: %T to string", ErrConvert, v)
	}
	return nil
}

func (s *String) String() string {
	return fmt.Sprintf("String(%q)", s.v)
}
