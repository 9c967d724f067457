// Package lossiness implements the translation pipeline's audit trail: the
// coarse, user-facing LossinessItem log and the fine-grained per-field
// TransformationRecord history that backs it.
package lossiness

import (
	"encoding/json"
	"time"
)

// LossinessCode classifies why a LossinessItem was recorded.
type LossinessCode string

const (
	CodeClamp             LossinessCode = "Clamp"
	CodeDrop              LossinessCode = "Drop"
	CodeEmulate           LossinessCode = "Emulate"
	CodeConflict          LossinessCode = "Conflict"
	CodeRelocate          LossinessCode = "Relocate"
	CodeUnsupported       LossinessCode = "Unsupported"
	CodeMapFallback       LossinessCode = "MapFallback"
	CodePerformanceImpact LossinessCode = "PerformanceImpact"
)

// Severity ranks a LossinessItem's impact; ordered so Critical > Error >
// Warning > Info for max-severity comparisons.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// StrictMode governs how aggressively the translation pipeline reacts to
// lossy transformations.
type StrictMode string

const (
	StrictModeStrict StrictMode = "Strict"
	StrictModeWarn   StrictMode = "Warn"
	StrictModeCoerce StrictMode = "Coerce"
)

// severityTable implements spec.md §4.2's (code, strict_mode) -> severity
// derivation exactly.
var severityTable = map[LossinessCode]map[StrictMode]Severity{
	CodeUnsupported: {
		StrictModeStrict: SeverityCritical,
		StrictModeWarn:   SeverityCritical,
		StrictModeCoerce: SeverityCritical,
	},
	CodeDrop: {
		StrictModeStrict: SeverityError,
		StrictModeWarn:   SeverityWarning,
		StrictModeCoerce: SeverityWarning,
	},
	CodeConflict: {
		StrictModeStrict: SeverityError,
		StrictModeWarn:   SeverityWarning,
		StrictModeCoerce: SeverityWarning,
	},
	CodeClamp: {
		StrictModeStrict: SeverityWarning,
		StrictModeWarn:   SeverityInfo,
		StrictModeCoerce: SeverityInfo,
	},
	CodeEmulate: {
		StrictModeStrict: SeverityWarning,
		StrictModeWarn:   SeverityWarning,
		StrictModeCoerce: SeverityWarning,
	},
	CodeRelocate: {
		StrictModeStrict: SeverityInfo,
		StrictModeWarn:   SeverityInfo,
		StrictModeCoerce: SeverityInfo,
	},
	CodeMapFallback: {
		StrictModeStrict: SeverityWarning,
		StrictModeWarn:   SeverityWarning,
		StrictModeCoerce: SeverityWarning,
	},
	CodePerformanceImpact: {
		StrictModeStrict: SeverityWarning,
		StrictModeWarn:   SeverityWarning,
		StrictModeCoerce: SeverityWarning,
	},
}

// LossinessItem is one coarse-grained, user-facing entry in a LossinessReport.
type LossinessItem struct {
	Code     LossinessCode `json:"code"`
	Path     string        `json:"path"`
	Message  string        `json:"message"`
	Severity Severity      `json:"severity"`
	Before   any           `json:"before,omitempty"`
	After    any           `json:"after,omitempty"`
}

// LossinessSummary tallies a report's items by severity and code.
type LossinessSummary struct {
	TotalItems int            `json:"total_items"`
	BySeverity map[string]int `json:"by_severity"`
	ByCode     map[string]int `json:"by_code"`
}

// LossinessReport is the immutable result of a Tracker.BuildReport() call.
type LossinessReport struct {
	Items       []LossinessItem  `json:"items"`
	MaxSeverity Severity         `json:"max_severity"`
	Summary     LossinessSummary `json:"summary"`
}

// OperationType classifies a TransformationRecord.
type OperationType string

const (
	OperationDropped        OperationType = "Dropped"
	OperationCoercion       OperationType = "Coercion"
	OperationTypeConversion OperationType = "TypeConversion"
	OperationDefaultApplied OperationType = "DefaultApplied"
	OperationRelocated      OperationType = "Relocated"
	OperationClamped        OperationType = "Clamped"
	OperationEmulated       OperationType = "Emulated"
)

// TransformationRecord is one fine-grained audit-trail entry, indexed by
// field path via Tracker.fieldIndex.
type TransformationRecord struct {
	FieldPath        string            `json:"field_path"`
	OperationType    OperationType     `json:"operation_type"`
	BeforeValue      any               `json:"before_value,omitempty"`
	AfterValue       any               `json:"after_value,omitempty"`
	Reason           string            `json:"reason"`
	ProviderContext  *string           `json:"provider_context,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

func newTransformationRecord(fieldPath string, opType OperationType, before, after any, reason string, providerContext *string, metadata map[string]string) TransformationRecord {
	return TransformationRecord{
		FieldPath:       fieldPath,
		OperationType:   opType,
		BeforeValue:     before,
		AfterValue:      after,
		Reason:          reason,
		ProviderContext: providerContext,
		Metadata:        metadata,
		Timestamp:       time.Now(),
	}
}

// PerformanceMetrics tracks per-field transformation timing across the
// lifetime of a Tracker.
type PerformanceMetrics struct {
	TotalDuration          time.Duration            `json:"total_duration"`
	TransformationTimes    map[string]time.Duration `json:"transformation_times"`
	SlowestField           string                   `json:"slowest_field,omitempty"`
	SlowestDuration        time.Duration            `json:"slowest_duration,omitempty"`
}

// AuditTrail is the fine-grained record of every transformation a Tracker
// has observed, plus aggregate counters and performance metrics.
type AuditTrail struct {
	Records             []TransformationRecord `json:"records"`
	TotalTransformations int                    `json:"total_transformations"`
	DroppedFieldsCount   int                    `json:"dropped_fields_count"`
	CoercionCount        int                    `json:"coercion_count"`
	StartTime            time.Time              `json:"start_time"`
	EndTime              *time.Time             `json:"end_time,omitempty"`
	PerformanceMetrics   PerformanceMetrics     `json:"performance_metrics"`
}

func newAuditTrail() AuditTrail {
	return AuditTrail{
		StartTime: time.Now(),
		PerformanceMetrics: PerformanceMetrics{
			TransformationTimes: make(map[string]time.Duration),
		},
	}
}

// SummaryStats is a point-in-time digest of an AuditTrail, used by
// reporting/diagnostics surfaces separate from the user-facing
// LossinessReport.
type SummaryStats struct {
	TotalTransformations int
	DroppedFieldsCount   int
	CoercionCount        int
	UniqueFieldsTouched  int
}
