// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package filter

import (
	"fmt"

	"github.com/ManuGH/emtf-tree/internal/tree"
)

// List applies filters in order and stops at the first that fails.
type List struct {
	filters []*Filter
}

func NewList(filters ...*Filter) *List {
	return &List{filters: filters}
}

func (l *List) Append(f *Filter) { l.filters = append(l.filters, f) }

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.filters)
}

// Filters returns the filters in order.
func (l *List) Filters() []*Filter {
	if l == nil {
		return nil
	}
	return append([]*Filter(nil), l.filters...)
}

// Apply reports whether the entry passes every filter. A nil or empty
// list passes everything.
func (l *List) Apply(buf *tree.Buffer) (bool, error) {
	if l == nil {
		return true, nil
	}
	for _, f := range l.filters {
		ok, err := f.Apply(buf)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Finalize finalizes every filter.
func (l *List) Finalize() {
	if l == nil {
		return
	}
	for _, f := range l.filters {
		f.Finalize()
	}
}

// CutFlow returns one stage per filter.
func (l *List) CutFlow() []Stage {
	if l == nil {
		return nil
	}
	out := make([]Stage, len(l.filters))
	for i, f := range l.filters {
		out[i] = f.Stage()
	}
	return out
}

// Clone returns a list of cloned filters with zero counts, for use by
// another worker.
func (l *List) Clone() *List {
	if l == nil {
		return nil
	}
	c := &List{filters: make([]*Filter, len(l.filters))}
	for i, f := range l.filters {
		c.filters[i] = f.Clone()
	}
	return c
}

// MergeCutFlows sums cut-flows stage by stage. All flows must list the
// same stages in the same order.
func MergeCutFlows(flows ...[]Stage) ([]Stage, error) {
	var out []Stage
	for _, flow := range flows {
		if flow == nil {
			continue
		}
		if out == nil {
			out = append([]Stage(nil), flow...)
			continue
		}
		if len(flow) != len(out) {
			return nil, fmt.Errorf("%w: %d stages vs %d", ErrCutFlowMismatch, len(flow), len(out))
		}
		for i, s := range flow {
			if s.Name != out[i].Name {
				return nil, fmt.Errorf("%w: stage %d is %q vs %q", ErrCutFlowMismatch, i, s.Name, out[i].Name)
			}
			out[i].Total += s.Total
			out[i].Passing += s.Passing
		}
	}
	return out, nil
}
