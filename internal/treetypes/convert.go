// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package treetypes

import (
	"fmt"
	"math"
	"reflect"
)

func convertTo[T Elem](info *Info, v any) (T, error) {
	var out T
	if err := assign(info, reflect.ValueOf(&out).Elem(), v); err != nil {
		return out, err
	}
	return out, nil
}

// assign stores v into dst, which must hold one of the Elem kinds.
func assign(info *Info, dst reflect.Value, v any) error {
	if val, ok := v.(Value); ok {
		v = val.Interface()
	}
	src := reflect.ValueOf(v)
	if !src.IsValid() {
		return fmt.Errorf("%w: nil to %s", ErrConvert, info.Name)
	}
	if src.Kind() == reflect.String && info.Char {
		s := src.String()
		if len(s) != 1 {
			return fmt.Errorf("%w: %q is not a single character", ErrConvert, s)
		}
		src = reflect.ValueOf(s[0])
	}

	switch dst.Kind() {
	case reflect.Bool:
		switch {
		case src.Kind() == reflect.Bool:
			dst.SetBool(src.Bool())
		case src.CanInt():
			dst.SetBool(src.Int() != 0)
		case src.CanUint():
			dst.SetBool(src.Uint() != 0)
		case src.CanFloat():
			dst.SetBool(src.Float() != 0)
		default:
			return convertErr(info, v)
		}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch {
		case src.Kind() == reflect.Bool:
			n = boolInt(src.Bool())
		case src.CanInt():
			n = src.Int()
		case src.CanUint():
			u := src.Uint()
			if u > math.MaxInt64 {
				return overflowErr(info, v)
			}
			n = int64(u)
		case src.CanFloat():
			f := src.Float()
			if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return overflowErr(info, v)
			}
			n = int64(f)
		default:
			return convertErr(info, v)
		}
		if dst.OverflowInt(n) {
			return overflowErr(info, v)
		}
		dst.SetInt(n)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		switch {
		case src.Kind() == reflect.Bool:
			n = uint64(boolInt(src.Bool()))
		case src.CanInt():
			i := src.Int()
			if i < 0 {
				return negativeErr(info, v)
			}
			n = uint64(i)
		case src.CanUint():
			n = src.Uint()
		case src.CanFloat():
			f := src.Float()
			if f < 0 {
				return negativeErr(info, v)
			}
			if math.IsNaN(f) || f >= math.MaxUint64 {
				return overflowErr(info, v)
			}
			n = uint64(f)
		default:
			return convertErr(info, v)
		}
		if dst.OverflowUint(n) {
			return overflowErr(info, v)
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		var f float64
		switch {
		case src.Kind() == reflect.Bool:
			f = float64(boolInt(src.Bool()))
		case src.CanInt():
			f = float64(src.Int())
		case src.CanUint():
			f = float64(src.Uint())
		case src.CanFloat():
			f = src.Float()
		default:
			return convertErr(info, v)
		}
		if dst.OverflowFloat(f) {
			return overflowErr(info, v)
		}
		dst.SetFloat(f)
	default:
		return convertErr(info, v)
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func convertErr(info *Info, v any) error {
	return fmt.Errorf("%w: %T to %s", ErrConvert, v, info.Name)
}

func overflowErr(info *Info, v any) error {
	return fmt.Errorf("%w: %v does not fit %s", ErrOverflow, v, info.Name)
}

func negativeErr(info *Info, v any) error {
	return fmt.Errorf("%w: assigning %v to %s", ErrNegativeUnsigned, v, info.Name)
}

// AsFloat64 converts a scalar element (or scalar Value) to float64.
func AsFloat64(v any) (float64, bool) {
	if val, ok := v.(Value); ok {
		v = val.Interface()
	}
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return 0, false
	case rv.Kind() == reflect.Bool:
		return float64(boolInt(rv.Bool())), true
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}

// AsInt64 converts a scalar element (or scalar Value) to int64, truncating
// floating point values.
func AsInt64(v any) (int64, bool) {
	if val, ok := v.(Value); ok {
		v = val.Interface()
	}
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return 0, false
	case rv.Kind() == reflect.Bool:
		return boolInt(rv.Bool()), true
	case rv.CanInt():
		return rv.Int(), true
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case rv.CanFloat():
		return int64(rv.Float()), true
	}
	return 0, false
}
