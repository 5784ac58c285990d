// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package treetypes

import "fmt"

// Scalar holds a single element.
type Scalar[T Elem] struct {
	info      *Info
	v         T
	def       T
	resetable bool
}

// NewScalar returns a scalar initialised to (and resetting to) def.
func NewScalar[T Elem](def T) *Scalar[T] {
	return &Scalar[T]{info: infoFor[T](), v: def, def: def, resetable: true}
}

// NoReset disables Reset; the value then carries over between entries.
func (s *Scalar[T]) NoReset() *Scalar[T] {
	s.resetable = false
	return s
}

func (s *Scalar[T]) Info() *Info      { return s.info }
func (s *Scalar[T]) TypeName() string { return s.info.Name }
func (s *Scalar[T]) Value() T         { return s.v }
func (s *Scalar[T]) Default() T       { return s.def }
func (s *Scalar[T]) Interface() any   { return s.v }
func (s *Scalar[T]) Target() any      { return &s.v }

func (s *Scalar[T]) Reset() {
	if s.resetable {
		s.v = s.def
	}
}

func (s *Scalar[T]) Set(v any) error {
	x, err := convertTo[T](s.info, v)
	if err != nil {
		return err
	}
	s.v = x
	return nil
}

func (s *Scalar[T]) String() string {
	if s.info.Char {
		return fmt.Sprintf("%s(%q)", s.info.Label, rune(byte(s.code())))
	}
	return fmt.Sprintf("%s(%v)", s.info.Label, s.v)
}

func (s *Scalar[T]) code() int64 {
	n, _ := AsInt64(s.v)
	return n
}
