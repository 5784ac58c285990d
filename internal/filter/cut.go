// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package filter

import (
	"fmt"

	"github.com/ManuGH/emtf-tree/internal/tree"
)

var comparisons = map[string]func(a, b float64) bool{
	"<":  func(a, b float64) bool { return a < b },
	"<=": func(a, b float64) bool { return a <= b },
	"==": func(a, b float64) bool { return a == b },
	"!=": func(a, b float64) bool { return a != b },
	">":  func(a, b float64) bool { return a > b },
	">=": func(a, b float64) bool { return a >= b },
}

// ValidOp reports whether op is a supported comparison.
func ValidOp(op string) bool {
	_, ok := comparisons[op]
	return ok
}

// Cut accepts entries whose scalar branch compares true against value,
// e.g. Cut("two_tracks", "vt_size", ">=", 2).
func Cut(name, branch, op string, value float64, opts ...Option) (*Filter, error) {
	cmp, ok := comparisons[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	pred := func(buf *tree.Buffer) (Verdict, error) {
		x, err := buf.Float64(branch)
		if err != nil {
			return Abstain, err
		}
		return Of(cmp(x, value)), nil
	}
	return New(name, pred, opts...), nil
}

// CountCut accepts entries in which the number of objects of a collection
// compares true against value. The collection's selection applies, so
// selections made by earlier hooks are respected.
func CountCut(name, collection, op string, value float64, opts ...Option) (*Filter, error) {
	cmp, ok := comparisons[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	pred := func(buf *tree.Buffer) (Verdict, error) {
		coll, ok := buf.Collection(collection)
		if !ok {
			return Abstain, fmt.Errorf("%w: collection %q", tree.ErrNoSuchBranch, collection)
		}
		n, err := coll.Len()
		if err != nil {
			return Abstain, err
		}
		return Of(cmp(float64(n), value)), nil
	}
	return New(name, pred, opts...), nil
}
