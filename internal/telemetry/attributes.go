// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package telemetry sets up OpenTelemetry tracing and names the span
// attributes shared across the daemon.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on spans.
const (
	SessionIDKey    = "session.id"
	SessionURLKey   = "session.url"
	SessionStateKey = "session.state"
	SessionAutoKey  = "session.auto_download"

	StreamURLKey        = "stream.url"
	StreamProtocolKey   = "stream.protocol"
	StreamResolutionKey = "stream.resolution"

	DownloadFormatKey = "download.format"
	DownloadStateKey  = "download.state"

	ScheduleIDKey        = "schedule.id"
	ScheduleKindKey      = "schedule.kind"
	ScheduleEvaluatedKey = "schedule.evaluated"
	ScheduleLaunchedKey  = "schedule.launched"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes describes a capture session. The schedule id is
// omitted for manual sessions.
func SessionAttributes(id, url, scheduleID string, autoDownload bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SessionIDKey, id),
		attribute.String(SessionURLKey, url),
		attribute.Bool(SessionAutoKey, autoDownload),
	}
	if scheduleID != "" {
		attrs = append(attrs, attribute.String(ScheduleIDKey, scheduleID))
	}
	return attrs
}

// StreamAttributes describes a selected stream; empty fields are skipped.
func StreamAttributes(url, protocol, resolution string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if url != "" {
		attrs = append(attrs, attribute.String(StreamURLKey, url))
	}
	if protocol != "" {
		attrs = append(attrs, attribute.String(StreamProtocolKey, protocol))
	}
	if resolution != "" {
		attrs = append(attrs, attribute.String(StreamResolutionKey, resolution))
	}
	return attrs
}

// EvaluationAttributes summarizes a schedule evaluation pass.
func EvaluationAttributes(evaluated, launched int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ScheduleEvaluatedKey, evaluated),
		attribute.Int(ScheduleLaunchedKey, launched),
	}
}

// ErrorAttributes marks a span as failed with a classification.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
