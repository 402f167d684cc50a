// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging. Kept to exactly
// the fields this repository's call sites actually emit, so the list stays
// in sync with what a log query can grep for.
const (
	// Context-propagated identity fields.
	FieldCorrelationID = "correlation_id"
	FieldComponent     = "component"

	// Task / pipeline fields.
	FieldInput   = "input"
	FieldOutput  = "output"
	FieldPath    = "path"
	FieldRoot    = "root"
	FieldEncoder = "encoder"
	FieldMode    = "mode"
	FieldReason  = "reason"
	FieldOutcome = "outcome"

	// Process fields.
	FieldPID = "pid"

	// Config fields.
	FieldConfigPath = "config_path"
	FieldValue      = "value"
)
