// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldScheduleID = "schedule_id"
	FieldRequestID  = "request_id"
	FieldJobID      = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Media / stream fields
	FieldProtocol   = "protocol"
	FieldStreamName = "stream_name"
	FieldResolution = "resolution"
	FieldFPS        = "fps"
	FieldCodec      = "codec"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldReason   = "reason"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
