// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "emtf-tree", ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)

	_, span := Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "emtf-tree", ExporterType: "zipkin"})
	require.ErrorIs(t, err, ErrUnsupportedExporter)
	assert.Equal(t, "unsupported exporter type: zipkin (supported: grpc, http)", err.Error())
}

func TestResourceAttributes(t *testing.T) {
	cfg := Config{ServiceName: "emtf-tree", ServiceVersion: "1.2.0"}
	assert.Len(t, resourceAttributes(cfg), 2)

	cfg.Job = "rates"
	attrs := resourceAttributes(cfg)
	require.Len(t, attrs, 3)
	assert.Equal(t, attribute.String(RunJobKey, "rates"), attrs[2])
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "ParentBased")
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "emtf-tree",
		ExporterType: "http",
		Endpoint:     "localhost:4318",
		SamplingRate: 0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, p.tp)
	assert.Equal(t, DefaultShutdownTimeout, p.timeout)
	// Nothing was sampled, so the flush does not reach the collector.
	_ = p.Shutdown(context.Background())
}

func TestFileAttributes(t *testing.T) {
	attrs := FileAttributes("/data/a.root", "ntupler/tree", 10)
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(FilePathKey, "/data/a.root"),
		attribute.String(TreeNameKey, "ntupler/tree"),
		attribute.Int64(TreeEntriesKey, 10),
	}, attrs)

	assert.Empty(t, FileAttributes("", "", -1))
}

func TestRunAndIterationAttributes(t *testing.T) {
	assert.Len(t, RunAttributes("id", "job", 4), 3)
	assert.Equal(t, attribute.Int64(EntriesPassedKey, 3), IterationAttributes(9, 3)[1])
	assert.Equal(t, attribute.Bool(ErrorKey, true), ErrorAttributes("open")[0])
}
