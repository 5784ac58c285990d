// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package filter decides which tree entries are processed and keeps the
// counts needed for a cut-flow.
package filter

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/emtf-tree/internal/log"
	"github.com/ManuGH/emtf-tree/internal/metrics"
	"github.com/ManuGH/emtf-tree/internal/tree"
)

var (
	ErrUnknownOp       = errors.New("unknown comparison operator")
	ErrCutFlowMismatch = errors.New("cut-flows do not match")
)

// Verdict is the outcome of a predicate for one entry.
type Verdict int

const (
	// Abstain leaves the entry out of the counts and rejects it.
	Abstain Verdict = iota
	Accept
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "abstain"
	}
}

// Of converts a boolean decision into a verdict.
func Of(pass bool) Verdict {
	if pass {
		return Accept
	}
	return Reject
}

// Predicate judges the entry held by the buffer.
type Predicate func(buf *tree.Buffer) (Verdict, error)

// Hook runs for every accepted entry.
type Hook func(buf *tree.Buffer)

// Filter counts how many entries it saw and how many it accepted.
type Filter struct {
	name        string
	pred        Predicate
	hooks       []Hook
	passthrough bool
	onFinalize  func(Stage)

	total   int64
	passing int64

	logger  zerolog.Logger
	abstain *rate.Sometimes
}

// Option configures a Filter.
type Option func(*Filter)

// WithHooks runs hooks, in order, for every accepted entry.
func WithHooks(hooks ...Hook) Option {
	return func(f *Filter) { f.hooks = append(f.hooks, hooks...) }
}

// Passthrough accepts every entry without evaluating the predicate. The
// entries are still counted.
func Passthrough(on bool) Option {
	return func(f *Filter) { f.passthrough = on }
}

// OnFinalize is called with the final counts when the list is finalized.
func OnFinalize(fn func(Stage)) Option {
	return func(f *Filter) { f.onFinalize = fn }
}

// New returns a filter named name.
func New(name string, pred Predicate, opts ...Option) *Filter {
	f := &Filter{
		name:    name,
		pred:    pred,
		logger:  xglog.WithComponent("filter").With().Str(xglog.FieldFilter, name).Logger(),
		abstain: &rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.passthrough {
		f.logger.Info().Msg("filter will run in pass-through mode")
	} else {
		f.logger.Info().Msg("filter is activated")
	}
	return f
}

// Clone returns a filter with the same behaviour and zero counts.
func (f *Filter) Clone() *Filter {
	c := *f
	c.total, c.passing = 0, 0
	c.hooks = append([]Hook(nil), f.hooks...)
	c.abstain = &rate.Sometimes{First: 1, Interval: time.Minute}
	return &c
}

func (f *Filter) Name() string        { return f.name }
func (f *Filter) Total() int64        { return f.total }
func (f *Filter) Passing() int64      { return f.passing }
func (f *Filter) IsPassthrough() bool { return f.passthrough }

// Apply judges one entry and reports whether it passes.
func (f *Filter) Apply(buf *tree.Buffer) (bool, error) {
	verdict := Accept
	if !f.passthrough {
		v, err := f.pred(buf)
		if err != nil {
			return false, fmt.Errorf("filter %q: %w", f.name, err)
		}
		verdict = v
	}
	metrics.RecordFilterDecision(f.name, verdict.String())

	switch verdict {
	case Accept:
		for _, hook := range f.hooks {
			hook(buf)
		}
		f.total++
		f.passing++
		return true, nil
	case Reject:
		f.total++
		return false, nil
	default:
		f.abstain.Do(func() {
			f.logger.Warn().
				Int64(xglog.FieldEntry, buf.Entry()).
				Msg("filter abstained so the entry does not contribute to the cut-flow; accept or reject it instead")
		})
		return false, nil
	}
}

// Stage returns the counts so far.
func (f *Filter) Stage() Stage {
	return Stage{Name: f.name, Total: f.total, Passing: f.passing}
}

// Finalize hands the final counts to the OnFinalize callback.
func (f *Filter) Finalize() {
	if f.onFinalize != nil {
		f.onFinalize(f.Stage())
	}
}

// Stage is one row of a cut-flow.
type Stage struct {
	Name    string `json:"name"`
	Total   int64  `json:"total"`
	Passing int64  `json:"passing"`
}

// Efficiency is Passing/Total, or 0 for a stage that saw nothing.
func (s Stage) Efficiency() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passing) / float64(s.Total)
}
