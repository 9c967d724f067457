package lossiness

import "time"

// Tracker collects LossinessItems and TransformationRecords over the
// course of a single translation, then produces an immutable LossinessReport.
type Tracker struct {
	items      []LossinessItem
	strictMode StrictMode
	auditTrail AuditTrail
	fieldIndex map[string][]int
	startedAt  time.Time
}

// NewTracker creates a Tracker for the given strict mode.
func NewTracker(strictMode StrictMode) *Tracker {
	return &Tracker{
		strictMode: strictMode,
		auditTrail: newAuditTrail(),
		fieldIndex: make(map[string][]int),
		startedAt:  time.Now(),
	}
}

func (t *Tracker) severityFor(code LossinessCode) Severity {
	if byMode, ok := severityTable[code]; ok {
		if sev, ok := byMode[t.strictMode]; ok {
			return sev
		}
	}
	return SeverityWarning
}

// AddClamped records a value that was clamped into a provider's supported range.
func (t *Tracker) AddClamped(path, message string, original, clamped any) {
	t.items = append(t.items, LossinessItem{
		Code: CodeClamp, Path: path, Message: message,
		Severity: t.severityFor(CodeClamp), Before: original, After: clamped,
	})
}

// AddDropped records a field that was removed entirely.
func (t *Tracker) AddDropped(path, message string, droppedValue any) {
	t.items = append(t.items, LossinessItem{
		Code: CodeDrop, Path: path, Message: message,
		Severity: t.severityFor(CodeDrop), Before: droppedValue,
	})
}

// AddEmulated records a feature that was approximated rather than
// natively supported (e.g. JSON mode via a system-prompt instruction).
func (t *Tracker) AddEmulated(path, message string, original any) {
	t.items = append(t.items, LossinessItem{
		Code: CodeEmulate, Path: path, Message: message,
		Severity: t.severityFor(CodeEmulate), Before: original,
	})
}

// AddConflict records a mutually-exclusive-field conflict resolution.
func (t *Tracker) AddConflict(path, message string, conflictingValues, resolvedValue any) {
	t.items = append(t.items, LossinessItem{
		Code: CodeConflict, Path: path, Message: message,
		Severity: t.severityFor(CodeConflict), Before: conflictingValues, After: resolvedValue,
	})
}

// AddRelocated records a field moved from one JSON path to another.
func (t *Tracker) AddRelocated(originalPath, newPath string, value any) {
	t.items = append(t.items, LossinessItem{
		Code:     CodeRelocate,
		Path:     originalPath,
		Message:  "Field relocated from '" + originalPath + "' to '" + newPath + "'",
		Severity: t.severityFor(CodeRelocate),
		Before:   value,
		After:    value,
	})
}

// AddUnsupported records a feature the target provider cannot express at all.
func (t *Tracker) AddUnsupported(path, message string, unsupportedValue any) {
	t.items = append(t.items, LossinessItem{
		Code: CodeUnsupported, Path: path, Message: message,
		Severity: t.severityFor(CodeUnsupported), Before: unsupportedValue,
	})
}

// AddMapFallback records a JSONPath mapping that fell back to a default
// target because the declared mapping could not be applied.
func (t *Tracker) AddMapFallback(path, message string, original, fallback any) {
	t.items = append(t.items, LossinessItem{
		Code: CodeMapFallback, Path: path, Message: message,
		Severity: t.severityFor(CodeMapFallback), Before: original, After: fallback,
	})
}

// AddPerformanceImpact records a transformation that is correct but costly.
func (t *Tracker) AddPerformanceImpact(path, message string, affectedValue any) {
	t.items = append(t.items, LossinessItem{
		Code: CodePerformanceImpact, Path: path, Message: message,
		Severity: t.severityFor(CodePerformanceImpact), Before: affectedValue,
	})
}

// AddItem appends a caller-constructed LossinessItem verbatim.
func (t *Tracker) AddItem(item LossinessItem) {
	t.items = append(t.items, item)
}

func (t *Tracker) recordTransformation(fieldPath string, opType OperationType, before, after any, reason string, providerContext *string, metadata map[string]string) {
	record := newTransformationRecord(fieldPath, opType, before, after, reason, providerContext, metadata)
	idx := len(t.auditTrail.Records)
	t.auditTrail.Records = append(t.auditTrail.Records, record)
	t.fieldIndex[fieldPath] = append(t.fieldIndex[fieldPath], idx)

	t.auditTrail.TotalTransformations++
	switch opType {
	case OperationDropped:
		t.auditTrail.DroppedFieldsCount++
	case OperationCoercion:
		t.auditTrail.CoercionCount++
	}
}

// TrackTransformation appends a TransformationRecord and updates the
// per-path index and counters, without measuring elapsed time.
func (t *Tracker) TrackTransformation(fieldPath string, opType OperationType, before, after any, reason string, providerContext *string, metadata map[string]string) {
	t.recordTransformation(fieldPath, opType, before, after, reason, providerContext, metadata)
}

// TrackTransformationWithTiming wraps operation, recording its elapsed
// duration against fieldPath (and updating the slowest-transformation
// tracking) before also recording the transformation itself.
func (t *Tracker) TrackTransformationWithTiming(fieldPath string, opType OperationType, before, after any, reason string, providerContext *string, metadata map[string]string, operation func()) {
	start := time.Now()
	operation()
	duration := time.Since(start)

	t.auditTrail.PerformanceMetrics.TransformationTimes[fieldPath] = duration
	if duration > t.auditTrail.PerformanceMetrics.SlowestDuration {
		t.auditTrail.PerformanceMetrics.SlowestField = fieldPath
		t.auditTrail.PerformanceMetrics.SlowestDuration = duration
	}

	t.recordTransformation(fieldPath, opType, before, after, reason, providerContext, metadata)
}

// TrackDroppedField records a field's removal in the fine-grained audit trail.
func (t *Tracker) TrackDroppedField(fieldPath string, originalValue any, reason string, providerContext *string) {
	t.recordTransformation(fieldPath, OperationDropped, originalValue, nil, reason, providerContext, nil)
}

// TrackCoercion records a value's type coercion in the fine-grained audit trail.
func (t *Tracker) TrackCoercion(fieldPath string, originalValue, coercedValue any, reason string, providerContext *string) {
	t.recordTransformation(fieldPath, OperationCoercion, originalValue, coercedValue, reason, providerContext, nil)
}

// TrackDefaultApplied records that a default value was substituted for an
// absent field.
func (t *Tracker) TrackDefaultApplied(fieldPath string, defaultValue any, reason string, providerContext *string) {
	t.recordTransformation(fieldPath, OperationDefaultApplied, nil, defaultValue, reason, providerContext, nil)
}

// GetFieldHistory returns every TransformationRecord recorded against path,
// in recording order.
func (t *Tracker) GetFieldHistory(path string) []TransformationRecord {
	indices, ok := t.fieldIndex[path]
	if !ok {
		return nil
	}
	out := make([]TransformationRecord, 0, len(indices))
	for _, i := range indices {
		if i < len(t.auditTrail.Records) {
			out = append(out, t.auditTrail.Records[i])
		}
	}
	return out
}

// GetTransformationsByType filters the audit trail's records by operation type.
func (t *Tracker) GetTransformationsByType(opType OperationType) []TransformationRecord {
	var out []TransformationRecord
	for _, r := range t.auditTrail.Records {
		if r.OperationType == opType {
			out = append(out, r)
		}
	}
	return out
}

// HasFieldChanged reports whether path has at least one TransformationRecord.
func (t *Tracker) HasFieldChanged(path string) bool {
	_, ok := t.fieldIndex[path]
	return ok
}

// BuildReport finalizes the audit trail's end time and performance
// metrics, computes max_severity and the by-severity/by-code tallies, and
// returns the immutable LossinessReport. The Tracker should not be used
// after this call.
func (t *Tracker) BuildReport() LossinessReport {
	now := time.Now()
	t.auditTrail.EndTime = &now
	t.auditTrail.PerformanceMetrics.TotalDuration = now.Sub(t.startedAt)

	maxSeverity := SeverityInfo
	bySeverity := make(map[string]int)
	byCode := make(map[string]int)
	for _, item := range t.items {
		if item.Severity > maxSeverity {
			maxSeverity = item.Severity
		}
		bySeverity[item.Severity.String()]++
		byCode[string(item.Code)]++
	}

	return LossinessReport{
		Items:       t.items,
		MaxSeverity: maxSeverity,
		Summary: LossinessSummary{
			TotalItems: len(t.items),
			BySeverity: bySeverity,
			ByCode:     byCode,
		},
	}
}

// MaxSeverity returns the highest severity recorded so far (Info if
// nothing has been recorded yet), without finalizing the audit trail the
// way BuildReport does. Used by the strictness gate, which must inspect
// severity before the report is built.
func (t *Tracker) MaxSeverity() Severity {
	max := SeverityInfo
	for _, item := range t.items {
		if item.Severity > max {
			max = item.Severity
		}
	}
	return max
}

// HasCriticalIssues reports whether any recorded item has Critical severity.
func (t *Tracker) HasCriticalIssues() bool {
	for _, item := range t.items {
		if item.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// HasErrors reports whether any recorded item has Error severity or higher.
func (t *Tracker) HasErrors() bool {
	for _, item := range t.items {
		if item.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// ItemCount returns the current number of LossinessItems recorded.
func (t *Tracker) ItemCount() int {
	return len(t.items)
}

// AuditTrail exposes the tracker's fine-grained audit trail for reporting
// and diagnostics surfaces.
func (t *Tracker) AuditTrail() AuditTrail {
	return t.auditTrail
}
