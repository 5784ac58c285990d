// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package report summarises a scan run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/ManuGH/emtf-tree/internal/chain"
	"github.com/ManuGH/emtf-tree/internal/filter"
)

// Report is the outcome of one run.
type Report struct {
	RunID    string         `json:"run_id"`
	Job      string         `json:"job,omitempty"`
	Tree     string         `json:"tree"`
	Workers  int            `json:"workers"`
	Files    []string       `json:"files"`
	Skipped  []chain.Skip   `json:"skipped,omitempty"`
	Entries  int64          `json:"entries"`
	Passed   int64          `json:"passed"`
	CutFlow  []filter.Stage `json:"cut_flow"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Error    string         `json:"error,omitempty"`
}

// New starts a report with a fresh run ID.
func New(job, tree string) *Report {
	return &Report{
		RunID:   uuid.NewString(),
		Job:     job,
		Tree:    tree,
		Started: time.Now().UTC(),
	}
}

// Finish stamps the end time and the error, if any.
func (r *Report) Finish(err error) {
	r.Finished = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *Report) Success() bool { return r.Error == "" }

func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// WriteJSON replaces path with the report. Readers never see a partly
// written file.
func WriteJSON(path string, r *Report) (err error) {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending report: %w", err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("cleanup pending report: %w", cerr)
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %q: %w", path, err)
	}
	return &r, nil
}

// WriteText prints a summary followed by the cut-flow table.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run:\t%s\n", r.RunID)
	if r.Job != "" {
		fmt.Fprintf(tw, "job:\t%s\n", r.Job)
	}
	fmt.Fprintf(tw, "tree:\t%s\n", r.Tree)
	fmt.Fprintf(tw, "files:\t%d read, %d skipped\n", len(r.Files), len(r.Skipped))
	fmt.Fprintf(tw, "entries:\t%s read, %s passed\n", humanize.Comma(r.Entries), humanize.Comma(r.Passed))
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(tw, "duration:\t%s\n", d.Round(time.Millisecond))
	}
	if r.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", r.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(r.CutFlow) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "STAGE\tTOTAL\tPASSING\tEFFICIENCY\tCUMULATIVE\t")
	first := r.CutFlow[0].Total
	for _, s := range r.CutFlow {
		cumulative := 0.0
		if first > 0 {
			cumulative = float64(s.Passing) / float64(first)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f%%\t%.2f%%\t\n",
			s.Name, humanize.Comma(s.Total), humanize.Comma(s.Passing),
			100*s.Efficiency(), 100*cumulative)
	}
	return tw.Flush()
}
