package bc3

import (
	"fmt"

	"go.uber.org/zap"
)

// DiagnosticKind classifies a recoverable defect found while parsing or
// generating.
type DiagnosticKind string

const (
	DiagMalformedRecord DiagnosticKind = "malformed_record"
	DiagUnknownRecord   DiagnosticKind = "unknown_record"
	DiagCodeCollision   DiagnosticKind = "code_collision"
	DiagDanglingRef     DiagnosticKind = "dangling_reference"
	DiagNumeric         DiagnosticKind = "numeric"
	DiagDate            DiagnosticKind = "date"
	DiagCycle           DiagnosticKind = "cycle"
	DiagDepth           DiagnosticKind = "depth"
	DiagSharedRef       DiagnosticKind = "shared_reference"
	DiagMissingConcept  DiagnosticKind = "missing_concept"
	DiagRootInference   DiagnosticKind = "root_inference"
	DiagCodeRenamed     DiagnosticKind = "code_renamed"
)

// Diagnostic is a defect that was recovered from locally.
type Diagnostic struct {
	Kind    DiagnosticKind
	Code    string
	Record  int // 1-based record index, 0 when not tied to a record
	Message string
}

func (d Diagnostic) String() string {
	if d.Record > 0 {
		return fmt.Sprintf("[%s] record %d, code %q: %s", d.Kind, d.Record, d.Code, d.Message)
	}
	return fmt.Sprintf("[%s] code %q: %s", d.Kind, d.Code, d.Message)
}

// diagnostics collects Diagnostic values and mirrors each one to the logger.
type diagnostics struct {
	logger *zap.Logger
	list   []Diagnostic
}

func newDiagnostics(logger *zap.Logger) *diagnostics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &diagnostics{logger: logger}
}

func (d *diagnostics) add(kind DiagnosticKind, code string, record int, format string, args ...any) {
	diag := Diagnostic{
		Kind:    kind,
		Code:    code,
		Record:  record,
		Message: fmt.Sprintf(format, args...),
	}
	d.list = append(d.list, diag)

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("code", code),
	}
	if record > 0 {
		fields = append(fields, zap.Int("record", record))
	}

	switch kind {
	case DiagUnknownRecord, DiagSharedRef, DiagRootInference:
		d.logger.Debug(diag.Message, fields...)
	default:
		d.logger.Warn(diag.Message, fields...)
	}
}
