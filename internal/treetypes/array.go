// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package treetypes

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Array holds a fixed-length (T[n]) or variable-length (T[], vector<T>)
// run of elements.
type Array[T Elem] struct {
	info      *Info
	typeName  string
	data      []T
	target    any
	fixed     bool
	def       T
	resetable bool
}

// NewArray returns a fixed-length array of n elements set to def.
func NewArray[T Elem](n int, def T) (*Array[T], error) {
	info := infoFor[T]()
	if n < 1 {
		return nil, fmt.Errorf("%w: %s array length must be positive, got %d", ErrLength, info.Name, n)
	}
	// The reader needs a pointer to a real [n]T; data aliases its storage.
	arr := reflect.New(reflect.ArrayOf(n, reflect.TypeFor[T]()))
	a := &Array[T]{
		info:      info,
		typeName:  info.Name + "[" + strconv.Itoa(n) + "]",
		data:      arr.Elem().Slice(0, n).Interface().([]T),
		target:    arr.Interface(),
		fixed:     true,
		def:       def,
		resetable: true,
	}
	a.fill(0)
	return a, nil
}

// NewVariableArray returns an empty variable-length array (T[]).
func NewVariableArray[T Elem]() *Array[T] {
	info := infoFor[T]()
	return newVariable[T](info, info.Name+"[]")
}

// NewVector returns an empty vector<T>.
func NewVector[T Elem]() *Array[T] {
	info := infoFor[T]()
	return newVariable[T](info, info.VectorName())
}

func newVariable[T Elem](info *Info, typeName string) *Array[T] {
	a := &Array[T]{info: info, typeName: typeName, resetable: true}
	a.target = &a.data
	return a
}

func (a *Array[T]) Info() *Info      { return a.info }
func (a *Array[T]) TypeName() string { return a.typeName }
func (a *Array[T]) Len() int         { return len(a.data) }
func (a *Array[T]) Fixed() bool      { return a.fixed }
func (a *Array[T]) Target() any      { return a.target }

// Values returns the elements. The slice aliases the array storage.
func (a *Array[T]) Values() []T { return a.data }

func (a *Array[T]) Interface() any { return a.data }

// NoReset disables Reset.
func (a *Array[T]) NoReset() *Array[T] {
	a.resetable = false
	return a
}

func (a *Array[T]) fill(from int) {
	for i := from; i < len(a.data); i++ {
		a.data[i] = a.def
	}
}

// Reset restores every element of a fixed array to its default and empties
// a variable-length one.
func (a *Array[T]) Reset() {
	if !a.resetable {
		return
	}
	if a.fixed {
		a.fill(0)
		return
	}
	a.data = a.data[:0]
}

func (a *Array[T]) At(i int) (any, error) {
	if i < 0 || i >= len(a.data) {
		return nil, fmt.Errorf("%w: index %d for %s of length %d", ErrIndexOutOfRange, i, a.typeName, len(a.data))
	}
	return a.data[i], nil
}

func (a *Array[T]) SetAt(i int, v any) error {
	if i < 0 || i >= len(a.data) {
		return fmt.Errorf("%w: index %d for %s of length %d", ErrIndexOutOfRange, i, a.typeName, len(a.data))
	}
	x, err := convertTo[T](a.info, v)
	if err != nil {
		return err
	}
	a.data[i] = x
	return nil
}

// Set copies the elements of a slice, array or Indexed value. A fixed array
// keeps its length: shorter input is padded with the default value and
// longer input is rejected.
func (a *Array[T]) Set(v any) error {
	elems, err := elements(v)
	if err != nil {
		return fmt.Errorf("%s: %w", a.typeName, err)
	}
	if a.fixed && len(elems) > len(a.data) {
		return fmt.Errorf("%w: %d elements do not fit %s", ErrLength, len(elems), a.typeName)
	}
	converted := make([]T, len(elems))
	for i, e := range elems {
		x, err := convertTo[T](a.info, e)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", a.typeName, i, err)
		}
		converted[i] = x
	}
	if a.fixed {
		copy(a.data, converted)
		a.fill(len(converted))
		return nil
	}
	a.data = append(a.data[:0], converted...)
	return nil
}

func (a *Array[T]) String() string {
	parts := make([]string, len(a.data))
	for i, x := range a.data {
		parts[i] = fmt.Sprint(x)
	}
	return fmt.Sprintf("%sArray[%s]", a.info.Label, strings.Join(parts, ", "))
}

func elements(v any) ([]any, error) {
	if idx, ok := v.(Indexed); ok {
		out := make([]any, idx.Len())
		for i := range out {
			out[i], _ = idx.At(i)
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("%w: %T is not a sequence", ErrConvert, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
