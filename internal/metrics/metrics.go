// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for tree scans.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay bounded: tree and filter names come from the job definition,
// never from file paths or entry numbers.

var (
	// FilterDecisions counts filter verdicts by filter and verdict
	// (accept|reject|abstain).
	FilterDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emtf_tree_filter_decisions_total",
		Help: "Filter decisions, by filter and verdict.",
	}, []string{"filter", "verdict"})

	entriesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emtf_tree_entries_read_total",
		Help: "Entries read from trees, by tree name.",
	}, []string{"tree"})

	entriesPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emtf_tree_entries_passed_total",
		Help: "Entries that passed all filters, by tree name.",
	}, []string{"tree"})

	filesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emtf_tree_files_opened_total",
		Help: "Files whose tree was read.",
	})

	filesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emtf_tree_files_skipped_total",
		Help: "Files skipped during rollover, by reason.",
	}, []string{"reason"}) // reason=open|missing|not_tree|no_branches|bind

	fileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "emtf_tree_file_duration_seconds",
		Help:    "Time spent iterating the entries of one file.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	})

	queuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emtf_tree_queue_pending",
		Help: "File names waiting in the distributed queue (last poll).",
	})

	indexLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emtf_tree_index_lookups_total",
		Help: "File index lookups, by result.",
	}, []string{"result"}) // result=hit|miss|stale|error

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emtf_tree_active_workers",
		Help: "Workers currently iterating a tree queue.",
	})

	watchedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emtf_tree_watched_files_total",
		Help: "Files emitted by the directory watcher.",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emtf_tree_runs_total",
		Help: "Completed scan runs, by outcome.",
	}, []string{"outcome"}) // outcome=success|failure
)

// RecordFilterDecision counts one verdict of a filter.
func RecordFilterDecision(filter, verdict string) {
	FilterDecisions.WithLabelValues(filter, verdict).Inc()
}

// RecordEntries adds read and passing entry counts for a tree.
func RecordEntries(tree string, read, passed int64) {
	if read > 0 {
		entriesRead.WithLabelValues(tree).Add(float64(read))
	}
	if passed > 0 {
		entriesPassed.WithLabelValues(tree).Add(float64(passed))
	}
}

func RecordFileOpened() {
	filesOpened.Inc()
}

func RecordFileSkipped(reason string) {
	filesSkipped.WithLabelValues(reason).Inc()
}

func ObserveFileDuration(d time.Duration) {
	fileDuration.Observe(d.Seconds())
}

func SetQueuePending(n int64) {
	queuePending.Set(float64(n))
}

func RecordIndexLookup(result string) {
	indexLookups.WithLabelValues(result).Inc()
}

// WorkerStarted and WorkerStopped track the active worker gauge.
func WorkerStarted() { activeWorkers.Inc() }
func WorkerStopped() { activeWorkers.Dec() }

func RecordWatchedFile() {
	watchedFiles.Inc()
}

func RecordRun(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	runsTotal.WithLabelValues(outcome).Inc()
}
