// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package treetypes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
)

// Factory builds values of one element type in each supported shape.
type Factory struct {
	Info     *Info
	Scalar   func() Value
	Array    func(n int) (Value, error)
	Variable func() Value
	Vector   func() Value
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}

	// arrayPattern matches "Type[n]" and "Type[]".
	arrayPattern  = regexp.MustCompile(`^(?P<type>[^\[]+)\[(?P<length>\d*)\]$`)
	vectorPattern = regexp.MustCompile(`^(?:std::)?vector<\s*(?P<elem>[^<>]+?)\s*>$`)
)

// Register makes f available under each of names.
func Register(f Factory, names ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	logger := xglog.WithComponent("treetypes")
	for _, name := range names {
		if _, dup := registry[name]; dup {
			logger.Debug().Str(xglog.FieldType, name).Msg("duplicate registration of type")
		}
		registry[name] = f
	}
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New builds a value for a branch type specification:
//
//	"Int_t" or "I"           scalar
//	"Float_t[4]"             fixed-length array
//	"Float_t[]"              variable-length array
//	"vector<float>"          vector
//	"Char_t[2]"              single character
//	"Char_t[16]"             NUL-terminated string of at most 15 characters
//	"string"                 string
func New(spec string) (Value, error) {
	spec = strings.TrimSpace(spec)
	if m := vectorPattern.FindStringSubmatch(spec); m != nil {
		f, ok := Lookup(m[1])
		if !ok || f.Vector == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, spec)
		}
		return f.Vector(), nil
	}
	if m := arrayPattern.FindStringSubmatch(spec); m != nil {
		f, ok := Lookup(strings.TrimSpace(m[1]))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, spec)
		}
		if m[2] == "" {
			if f.Variable == nil {
				return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, spec)
			}
			return f.Variable(), nil
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrLength, spec)
		}
		if f.Array == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, spec)
		}
		return f.Array(n)
	}
	f, ok := Lookup(spec)
	if !ok || f.Scalar == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, spec)
	}
	return f.Scalar(), nil
}

func numericFactory[T Elem]() Factory {
	var zero T
	return Factory{
		Info:   infoFor[T](),
		Scalar: func() Value { return NewScalar[T](zero) },
		Array: func(n int) (Value, error) {
			a, err := NewArray[T](n, zero)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		Variable: func() Value { return NewVariableArray[T]() },
		Vector:   func() Value { return NewVector[T]() },
	}
}

func charFactory[T Byte]() Factory {
	f := numericFactory[T]()
	f.Array = func(n int) (Value, error) {
		switch n {
		case 1:
			return nil, fmt.Errorf("%w: char branch of length 1 is not null-terminated", ErrLength)
		case 2:
			// One character plus the terminator.
			return f.Scalar(), nil
		}
		c, err := NewCharArray[T](n)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return f
}

// registerBuiltin registers f under its ROOT name, its alias, its C++
// spellings and its label ("Int"). The array factory goes under the label
// plus "Array" ("IntArray"), which is variable length unless given "[n]".
func registerBuiltin(f Factory) {
	names := []string{f.Info.Name, f.Info.Alias, f.Info.Label}
	names = append(names, f.Info.Cxx...)
	Register(f, names...)

	arrays := f
	arrays.Scalar = f.Variable
	Register(arrays, f.Info.Label+"Array")
}

func init() {
	registerBuiltin(numericFactory[bool]())
	registerBuiltin(charFactory[int8]())
	registerBuiltin(charFactory[uint8]())
	registerBuiltin(numericFactory[int16]())
	registerBuiltin(numericFactory[uint16]())
	registerBuiltin(numericFactory[int32]())
	registerBuiltin(numericFactory[uint32]())
	registerBuiltin(numericFactory[int64]())
	registerBuiltin(numericFactory[uint64]())
	registerBuiltin(numericFactory[float32]())
	registerBuiltin(numericFactory[float64]())

	Register(Factory{Scalar: func() Value { return NewString("") }},
		"string", "std::string", "TString")
}
