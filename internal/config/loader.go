// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads scan jobs from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/emtf-tree/internal/queue"
)

// Defaults.
const (
	DefaultWorkers          = 1
	DefaultProgressInterval = time.Minute
	DefaultSettle           = 2 * time.Second
	DefaultRateLimit        = 60
)

// Loader builds a Job with the precedence ENV > file > defaults.
type Loader struct {
	configPath string
	// ConsumedEnvKeys records every variable the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader returns a loader for configPath; an empty path uses only the
// environment and defaults.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath, ConsumedEnvKeys: map[string]struct{}{}}
}

// Load reads, merges and validates the job.
func (l *Loader) Load() (Job, error) {
	job, err := l.Resolve()
	if err != nil {
		return job, err
	}
	if err := Validate(job); err != nil {
		return job, err
	}
	return job, nil
}

// Resolve merges defaults, the file and the environment without validating,
// so callers can apply their own overrides first.
func (l *Loader) Resolve() (Job, error) {
	job := Defaults()
	if l.configPath != "" {
		fileJob, err := LoadFile(l.configPath)
		if err != nil {
			return job, err
		}
		job = fileJob
	}
	l.mergeEnv(&job)
	return job, nil
}

// Defaults returns a job with every default filled in.
func Defaults() Job {
	var job Job
	applyDefaults(&job)
	return job
}

func applyDefaults(job *Job) {
	if job.Workers == 0 {
		job.Workers = DefaultWorkers
	}
	if job.Events == 0 {
		job.Events = -1
	}
	if job.ProgressInterval == 0 {
		job.ProgressInterval = DefaultProgressInterval
	}
	if job.Redis.Key == "" {
		job.Redis.Key = queue.DefaultKey
	}
	if job.Redis.PollTimeout == 0 {
		job.Redis.PollTimeout = time.Second
	}
	if job.Watch.Pattern == "" {
		job.Watch.Pattern = "*.root"
	}
	if job.Watch.Settle == 0 {
		job.Watch.Settle = DefaultSettle
	}
	if job.Log.Level == "" {
		job.Log.Level = "info"
	}
	if job.Log.Format == "" {
		job.Log.Format = "auto"
	}
	if job.Telemetry.Exporter == "" {
		job.Telemetry.Exporter = "grpc"
	}
	if job.Telemetry.Endpoint == "" {
		job.Telemetry.Endpoint = "localhost:4317"
	}
	if job.Telemetry.SamplingRate == 0 {
		job.Telemetry.SamplingRate = 1
	}
	if job.Server.RateLimit == 0 {
		job.Server.RateLimit = DefaultRateLimit
	}
}

// LoadFile parses a YAML job strictly: unknown keys and more than one
// document are errors. Defaults fill whatever the file leaves out.
func LoadFile(path string) (Job, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return Job{}, &FileError{Path: path, Err: fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)}
	}
	// #nosec G304 -- job files are chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, &FileError{Path: path, Err: err}
	}
	job, err := Parse(data)
	if err != nil {
		return Job{}, &FileError{Path: path, Err: err}
	}
	return job, nil
}

// Parse decodes a YAML job.
func Parse(data []byte) (Job, error) {
	var job Job
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return Job{}, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return Job{}, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Job{}, ErrMultipleDocuments
	}
	applyDefaults(&job)
	return job, nil
}

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envInt64(key string, def int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) mergeEnv(job *Job) {
	job.Tree = l.envString(EnvPrefix+"TREE", job.Tree)
	job.Events = l.envInt64(EnvPrefix+"EVENTS", job.Events)
	job.Workers = l.envInt(EnvPrefix+"WORKERS", job.Workers)
	job.ReadOnDemand = l.envBool(EnvPrefix+"READ_ON_DEMAND", job.ReadOnDemand)
	job.ProgressInterval = l.envDuration(EnvPrefix+"PROGRESS_INTERVAL", job.ProgressInterval)

	job.Index.Dir = l.envString(EnvPrefix+"INDEX_DIR", job.Index.Dir)
	job.History.Path = l.envString(EnvPrefix+"HISTORY_PATH", job.History.Path)
	job.Report.JSON = l.envString(EnvPrefix+"REPORT_JSON", job.Report.JSON)

	job.Redis.Addr = l.envString(EnvPrefix+"REDIS_ADDR", job.Redis.Addr)
	job.Redis.Password = l.envString(EnvPrefix+"REDIS_PASSWORD", job.Redis.Password)
	job.Redis.DB = l.envInt(EnvPrefix+"REDIS_DB", job.Redis.DB)
	job.Redis.Key = l.envString(EnvPrefix+"REDIS_KEY", job.Redis.Key)

	job.Log.Level = l.envString(EnvPrefix+"LOG_LEVEL", job.Log.Level)
	job.Log.Format = l.envString(EnvPrefix+"LOG_FORMAT", job.Log.Format)

	job.Telemetry.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", job.Telemetry.Enabled)
	job.Telemetry.Exporter = l.envString(EnvPrefix+"TELEMETRY_EXPORTER", job.Telemetry.Exporter)
	job.Telemetry.Endpoint = l.envString(EnvPrefix+"TELEMETRY_ENDPOINT", job.Telemetry.Endpoint)
	job.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TELEMETRY_SAMPLING_RATE", job.Telemetry.SamplingRate)

	job.Server.Listen = l.envString(EnvPrefix+"LISTEN", job.Server.Listen)
}
