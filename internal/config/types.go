// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Job describes one scan: which tree to read from where, what to select,
// and where the results go.
type Job struct {
	Name string `yaml:"name"`
	Tree string `yaml:"tree"`
	// Files are paths or glob patterns, expanded in order.
	Files             []string      `yaml:"files"`
	Branches          []string      `yaml:"branches"`
	IgnoreBranches    []string      `yaml:"ignore_branches"`
	AlwaysRead        []string      `yaml:"always_read"`
	ReadOnDemand      bool          `yaml:"read_on_demand"`
	IgnoreUnsupported bool          `yaml:"ignore_unsupported"`
	Events            int64         `yaml:"events"`
	Workers           int           `yaml:"workers"`
	ProgressInterval  time.Duration `yaml:"progress_interval"`

	Collections []CollectionConfig `yaml:"collections"`
	Objects     []ObjectConfig     `yaml:"objects"`
	Cuts        []CutConfig        `yaml:"cuts"`

	Index     IndexConfig     `yaml:"index"`
	History   HistoryConfig   `yaml:"history"`
	Report    ReportConfig    `yaml:"report"`
	Redis     RedisConfig     `yaml:"redis"`
	Watch     WatchConfig     `yaml:"watch"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
}

// CollectionConfig groups the branches sharing a prefix into objects
// counted by a size branch.
type CollectionConfig struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	Size   string `yaml:"size"`
}

// ObjectConfig groups the branches sharing a prefix into one object.
type ObjectConfig struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
}

// CutConfig is a comparison on a scalar branch, or on the number of
// objects in a collection.
type CutConfig struct {
	Name        string  `yaml:"name"`
	Branch      string  `yaml:"branch"`
	Collection  string  `yaml:"collection"`
	Op          string  `yaml:"op"`
	Value       float64 `yaml:"value"`
	Passthrough bool    `yaml:"passthrough"`
}

type IndexConfig struct {
	// Dir holds the metadata cache; empty disables it.
	Dir string `yaml:"dir"`
}

type HistoryConfig struct {
	// Path of the SQLite database; empty disables history.
	Path string `yaml:"path"`
}

type ReportConfig struct {
	JSON string `yaml:"json"`
	Text bool   `yaml:"text"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Key         string        `yaml:"key"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type WatchConfig struct {
	Dir      string        `yaml:"dir"`
	Pattern  string        `yaml:"pattern"`
	Existing bool          `yaml:"existing"`
	Settle   time.Duration `yaml:"settle"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "auto", "json" or "console".
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

type ServerConfig struct {
	// Listen is the status server address; empty disables it.
	Listen string `yaml:"listen"`
	// RateLimit is the number of requests allowed per client and minute.
	RateLimit int `yaml:"rate_limit"`
}
