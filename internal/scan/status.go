// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scan

import (
	"sync"
	"time"
)

// States of a run.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Status tracks the current run for the status endpoint. The zero value
// is idle and ready to use.
type Status struct {
	mu   sync.Mutex
	snap Snapshot
}

// Snapshot is a copy of the status at one point in time.
type Snapshot struct {
	State    string    `json:"state"`
	RunID    string    `json:"run_id,omitempty"`
	Job      string    `json:"job,omitempty"`
	Tree     string    `json:"tree,omitempty"`
	File     string    `json:"current_file,omitempty"`
	Files    int       `json:"files"`
	Passed   int64     `json:"passed"`
	Started  time.Time `json:"started,omitzero"`
	Finished time.Time `json:"finished,omitzero"`
	Error    string    `json:"error,omitempty"`
}

// Snapshot returns the current status. A nil Status is idle.
func (s *Status) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{State: StateIdle}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	if out.State == "" {
		out.State = StateIdle
	}
	return out
}

func (s *Status) update(fn func(*Snapshot)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}

func (s *Status) start(runID, job, tree string, started time.Time) {
	s.update(func(sn *Snapshot) {
		*sn = Snapshot{State: StateRunning, RunID: runID, Job: job, Tree: tree, Started: started}
	})
}

func (s *Status) fileChanged(name string) {
	s.update(func(sn *Snapshot) {
		sn.File = name
		sn.Files++
	})
}

func (s *Status) passed() {
	s.update(func(sn *Snapshot) { sn.Passed++ })
}

func (s *Status) finish(finished time.Time, err error) {
	s.update(func(sn *Snapshot) {
		sn.State = StateDone
		sn.File = ""
		sn.Finished = finished
		if err != nil {
			sn.State = StateFailed
			sn.Error = err.Error()
		}
	})
}
