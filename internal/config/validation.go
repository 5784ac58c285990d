// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/emtf-tree/internal/filter"
	"github.com/ManuGH/emtf-tree/internal/validate"
)

// Validate checks a job and reports every problem at once as a
// validate.ValidationError.
func Validate(job Job) error {
	v := validate.New()

	v.NotEmpty("tree", job.Tree)
	v.Positive("workers", job.Workers)
	v.Patterns("branches", job.Branches)
	v.Patterns("ignore_branches", job.IgnoreBranches)
	if job.ProgressInterval < 0 {
		v.AddError("progress_interval", "value cannot be negative", job.ProgressInterval)
	}
	if job.Watch.Settle < 0 {
		v.AddError("watch.settle", "value cannot be negative", job.Watch.Settle)
	}
	v.OneOf("log.format", job.Log.Format, []string{"auto", "json", "console"})
	v.OneOf("telemetry.exporter", job.Telemetry.Exporter, []string{"grpc", "http"})
	if r := job.Telemetry.SamplingRate; r < 0 || r > 1 {
		v.AddError("telemetry.sampling_rate", fmt.Sprintf("value must be between 0 and 1, got %g", r), r)
	}
	v.NonNegative("redis.db", job.Redis.DB)
	v.Positive("server.rate_limit", job.Server.RateLimit)

	collections := map[string]bool{}
	for i, c := range job.Collections {
		field := fmt.Sprintf("collections[%d]", i)
		v.NotEmpty(field+".name", c.Name)
		v.NotEmpty(field+".prefix", c.Prefix)
		v.NotEmpty(field+".size", c.Size)
		if collections[c.Name] {
			v.AddError(field+".name", "duplicate collection", c.Name)
		}
		collections[c.Name] = true
	}
	objects := map[string]bool{}
	for i, o := range job.Objects {
		field := fmt.Sprintf("objects[%d]", i)
		v.NotEmpty(field+".name", o.Name)
		v.NotEmpty(field+".prefix", o.Prefix)
		if objects[o.Name] || collections[o.Name] {
			v.AddError(field+".name", "name already used", o.Name)
		}
		objects[o.Name] = true
	}

	cuts := map[string]bool{}
	for i, c := range job.Cuts {
		field := fmt.Sprintf("cuts[%d]", i)
		v.NotEmpty(field+".name", c.Name)
		if cuts[c.Name] {
			v.AddError(field+".name", "duplicate cut", c.Name)
		}
		cuts[c.Name] = true
		if !filter.ValidOp(c.Op) {
			v.AddError(field+".op", fmt.Sprintf("unknown comparison %q", c.Op), c.Op)
		}
		hasBranch := strings.TrimSpace(c.Branch) != ""
		hasColl := strings.TrimSpace(c.Collection) != ""
		switch {
		case hasBranch == hasColl:
			v.AddError(field, "exactly one of branch or collection must be set", c)
		case hasColl && !collections[c.Collection]:
			v.AddError(field+".collection", "collection is not defined", c.Collection)
		}
	}
	return v.Err()
}

// Source names where the job's files come from: "files", "redis" or
// "watch". Files win over the others.
func (j Job) Source() string {
	switch {
	case len(j.Files) > 0:
		return "files"
	case j.Watch.Dir != "":
		return "watch"
	case j.Redis.Addr != "":
		return "redis"
	}
	return ""
}
