// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package treetypes provides typed containers for ROOT tree branch values.
//
// Every ROOT leaf type maps onto exactly one Go element type:
//
//	Bool_t bool, Char_t int8, UChar_t uint8, Short_t int16, UShort_t uint16,
//	Int_t int32, UInt_t uint32, Long64_t int64, ULong64_t uint64,
//	Float_t float32, Double_t float64
//
// Values come in three shapes: scalars, fixed-length arrays (T[n]) and
// variable-length arrays (T[] and vector<T>). Their Target is the pointer a
// tree reader decodes an entry into.
package treetypes

import (
	"fmt"
	"reflect"
	"strings"
)

// Info describes one ROOT leaf type.
type Info struct {
	Label    string   // short Go-side label used in String() ("Int")
	Name     string   // ROOT type name ("Int_t")
	Alias    string   // short buffer alias ("I")
	Code     string   // ROOT leaf type code ("I")
	GoType   string   // Go element type ("int32")
	NumPy    string   // NumPy dtype code ("i4")
	Cxx      []string // C++ spellings accepted inside vector<...>
	Unsigned bool
	Char     bool
}

var (
	InfoBool   = &Info{Label: "Bool", Name: "Bool_t", Alias: "B", Code: "O", GoType: "bool", NumPy: "b", Cxx: []string{"bool"}}
	InfoChar   = &Info{Label: "Char", Name: "Char_t", Alias: "C", Code: "B", GoType: "int8", NumPy: "i1", Cxx: []string{"char"}, Char: true}
	InfoUChar  = &Info{Label: "UChar", Name: "UChar_t", Alias: "UC", Code: "b", GoType: "uint8", NumPy: "u1", Cxx: []string{"unsigned char"}, Unsigned: true, Char: true}
	InfoShort  = &Info{Label: "Short", Name: "Short_t", Alias: "S", Code: "S", GoType: "int16", NumPy: "i2", Cxx: []string{"short"}}
	InfoUShort = &Info{Label: "UShort", Name: "UShort_t", Alias: "US", Code: "s", GoType: "uint16", NumPy: "u2", Cxx: []string{"unsigned short"}, Unsigned: true}
	InfoInt    = &Info{Label: "Int", Name: "Int_t", Alias: "I", Code: "I", GoType: "int32", NumPy: "i4", Cxx: []string{"int"}}
	InfoUInt   = &Info{Label: "UInt", Name: "UInt_t", Alias: "UI", Code: "i", GoType: "uint32", NumPy: "u4", Cxx: []string{"unsigned int"}, Unsigned: true}
	InfoLong   = &Info{Label: "Long", Name: "Long64_t", Alias: "L", Code: "L", GoType: "int64", NumPy: "i8", Cxx: []string{"long", "long long"}}
	InfoULong  = &Info{Label: "ULong", Name: "ULong64_t", Alias: "UL", Code: "l", GoType: "uint64", NumPy: "u8", Cxx: []string{"unsigned long", "unsigned long long"}, Unsigned: true}
	InfoFloat  = &Info{Label: "Float", Name: "Float_t", Alias: "F", Code: "F", GoType: "float32", NumPy: "f4", Cxx: []string{"float"}}
	InfoDouble = &Info{Label: "Double", Name: "Double_t", Alias: "D", Code: "D", GoType: "float64", NumPy: "f8", Cxx: []string{"double"}}
)

// Infos lists the leaf types in ROOT's canonical order.
var Infos = []*Info{
	InfoBool, InfoChar, InfoUChar, InfoShort, InfoUShort,
	InfoInt, InfoUInt, InfoLong, InfoULong, InfoFloat, InfoDouble,
}

// InfoForKind returns the leaf type stored in Go values of kind k.
func InfoForKind(k reflect.Kind) (*Info, bool) {
	switch k {
	case reflect.Bool:
		return InfoBool, true
	case reflect.Int8:
		return InfoChar, true
	case reflect.Uint8:
		return InfoUChar, true
	case reflect.Int16:
		return InfoShort, true
	case reflect.Uint16:
		return InfoUShort, true
	case reflect.Int32:
		return InfoInt, true
	case reflect.Uint32:
		return InfoUInt, true
	case reflect.Int64:
		return InfoLong, true
	case reflect.Uint64:
		return InfoULong, true
	case reflect.Float32:
		return InfoFloat, true
	case reflect.Float64:
		return InfoDouble, true
	}
	return nil, false
}

func infoFor[T Elem]() *Info {
	info, ok := InfoForKind(reflect.TypeFor[T]().Kind())
	if !ok {
		// Elem admits only the eleven kinds handled above.
		panic(fmt.Sprintf("treetypes: no leaf type for %s", reflect.TypeFor[T]()))
	}
	return info
}

// VectorName returns the canonical vector<...> spelling for the type.
func (i *Info) VectorName() string {
	return "vector<" + i.Cxx[0] + ">"
}

func (i *Info) String() string {
	return i.Name
}

// Table names one of the type naming schemes understood by Convert.
type Table string

const (
	TableRootCode Table = "ROOTCODE"
	TableRootName Table = "ROOTNAME"
	TableGo       Table = "GO"
	TableNumPy    Table = "NUMPY"
)

// ParseTable resolves a table name case-insensitively.
func ParseTable(s string) (Table, error) {
	t := Table(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TableRootCode, TableRootName, TableGo, TableNumPy:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q is not a valid type table", ErrUnknownType, s)
}

func (t Table) column(i *Info) string {
	switch t {
	case TableRootCode:
		return i.Code
	case TableRootName:
		return i.Name
	case TableGo:
		return i.GoType
	case TableNumPy:
		return i.NumPy
	}
	return ""
}

// Convert translates a type spelled in the origin table into the target
// table, e.g. Convert("ROOTCODE", "NUMPY", "F") == "f4".
func Convert(origin, target, typ string) (string, error) {
	from, err := ParseTable(origin)
	if err != nil {
		return "", err
	}
	to, err := ParseTable(target)
	if err != nil {
		return "", err
	}
	for _, info := range Infos {
		if from.column(info) == typ {
			return to.column(info), nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a valid %s type", ErrUnknownType, typ, origin)
}
