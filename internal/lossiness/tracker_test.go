package lossiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerCreation(t *testing.T) {
	tr := NewTracker(StrictModeStrict)
	assert.Equal(t, 0, tr.ItemCount())
	assert.False(t, tr.HasErrors())
	assert.False(t, tr.HasCriticalIssues())
}

func TestAddClamped(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	tr.AddClamped("temperature", "Temperature clamped to provider range", 2.5, 2.0)

	require.Equal(t, 1, tr.ItemCount())
	report := tr.BuildReport()
	assert.Equal(t, CodeClamp, report.Items[0].Code)
	assert.Equal(t, SeverityInfo, report.Items[0].Severity)
}

func TestAddUnsupportedStrict(t *testing.T) {
	tr := NewTracker(StrictModeStrict)
	tr.AddUnsupported("tools", "Tools not supported by provider", []any{})

	assert.True(t, tr.HasCriticalIssues())
	report := tr.BuildReport()
	assert.Equal(t, SeverityCritical, report.Items[0].Severity)
}

func TestAddDroppedStrict(t *testing.T) {
	tr := NewTracker(StrictModeStrict)
	tr.AddDropped("custom_field", "Custom field not supported", "value")

	assert.True(t, tr.HasErrors())
	report := tr.BuildReport()
	assert.Equal(t, SeverityError, report.Items[0].Severity)
}

func TestBuildReportSummary(t *testing.T) {
	tr := NewTracker(StrictModeWarn)

	tr.AddClamped("field1", "Clamped", nil, nil)
	tr.AddDropped("field2", "Dropped", nil)
	tr.AddEmulated("field3", "Emulated", nil)
	tr.AddClamped("field4", "Clamped", nil, nil)

	report := tr.BuildReport()

	assert.Equal(t, 4, report.Summary.TotalItems)
	assert.Equal(t, 2, report.Summary.ByCode["Clamp"])
	assert.Equal(t, 1, report.Summary.ByCode["Drop"])
	assert.Equal(t, 1, report.Summary.ByCode["Emulate"])
	assert.Equal(t, SeverityWarning, report.MaxSeverity)
}

func TestSeverityDerivationStrict(t *testing.T) {
	tr := NewTracker(StrictModeStrict)
	tr.AddUnsupported("f1", "msg", nil)
	tr.AddDropped("f2", "msg", nil)
	tr.AddConflict("f3", "msg", nil, nil)
	tr.AddClamped("f4", "msg", nil, nil)

	report := tr.BuildReport()
	assert.Equal(t, SeverityCritical, report.Items[0].Severity)
	assert.Equal(t, SeverityError, report.Items[1].Severity)
	assert.Equal(t, SeverityError, report.Items[2].Severity)
	assert.Equal(t, SeverityWarning, report.Items[3].Severity)
}

func TestSeverityDerivationWarn(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	tr.AddUnsupported("f1", "msg", nil)
	tr.AddDropped("f2", "msg", nil)
	tr.AddConflict("f3", "msg", nil, nil)
	tr.AddClamped("f4", "msg", nil, nil)

	report := tr.BuildReport()
	assert.Equal(t, SeverityCritical, report.Items[0].Severity)
	assert.Equal(t, SeverityWarning, report.Items[1].Severity)
	assert.Equal(t, SeverityWarning, report.Items[2].Severity)
	assert.Equal(t, SeverityInfo, report.Items[3].Severity)
}

func TestTrackTransformationUpdatesFieldIndex(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	metadata := map[string]string{"test_key": "test_value"}

	tr.TrackTransformation("$.temperature", OperationTypeConversion, "98.6", 98.6, "numeric coercion", nil, metadata)

	assert.True(t, tr.HasFieldChanged("$.temperature"))
	history := tr.GetFieldHistory("$.temperature")
	require.Len(t, history, 1)
	assert.Equal(t, OperationTypeConversion, history[0].OperationType)
	assert.Equal(t, "98.6", history[0].BeforeValue)
	assert.Equal(t, 98.6, history[0].AfterValue)
}

func TestTrackTransformationWithTimingRunsOperation(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	ran := false

	tr.TrackTransformationWithTiming("$.a", OperationCoercion, nil, nil, "coerce", nil, nil, func() {
		ran = true
	})

	assert.True(t, ran)
	assert.Equal(t, 1, tr.auditTrail.TotalTransformations)
	assert.Equal(t, 1, tr.auditTrail.CoercionCount)
	_, tracked := tr.auditTrail.PerformanceMetrics.TransformationTimes["$.a"]
	assert.True(t, tracked)
}

func TestTrackDroppedFieldIncrementsCounter(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	tr.TrackDroppedField("$.legacy", "old", "not in provider schema", nil)

	assert.Equal(t, 1, tr.auditTrail.DroppedFieldsCount)
	assert.Equal(t, 1, tr.auditTrail.TotalTransformations)
}

func TestGetTransformationsByType(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	tr.TrackCoercion("$.a", "1", 1.0, "numeric coercion", nil)
	tr.TrackDroppedField("$.b", "x", "unused", nil)
	tr.TrackCoercion("$.c", "2", 2.0, "numeric coercion", nil)

	coercions := tr.GetTransformationsByType(OperationCoercion)
	assert.Len(t, coercions, 2)
}

func TestHasFieldChangedFalseForUntouched(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	assert.False(t, tr.HasFieldChanged("$.never"))
}

func TestAddRelocatedMessageAndValues(t *testing.T) {
	tr := NewTracker(StrictModeWarn)
	tr.AddRelocated("$.top.level", "$.nested.level", "moved")

	report := tr.BuildReport()
	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, CodeRelocate, item.Code)
	assert.Equal(t, "$.top.level", item.Path)
	assert.Equal(t, "moved", item.Before)
	assert.Equal(t, "moved", item.After)
	assert.Contains(t, item.Message, "$.top.level")
	assert.Contains(t, item.Message, "$.nested.level")
}

func TestMaxSeverityDefaultsToInfoWhenEmpty(t *testing.T) {
	tr := NewTracker(StrictModeStrict)
	report := tr.BuildReport()
	assert.Equal(t, SeverityInfo, report.MaxSeverity)
	assert.Equal(t, 0, report.Summary.TotalItems)
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical > SeverityError)
	assert.True(t, SeverityError > SeverityWarning)
	assert.True(t, SeverityWarning > SeverityInfo)
}
