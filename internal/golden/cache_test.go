package golden

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRecordAndLastRun(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	cache, err := OpenCache(dsn)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	runAt := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	result := TestResult{Name: "basic-chat", Passed: true, DurationMS: 42}

	require.NoError(t, cache.Record(ctx, result, runAt))

	got, lastRun, ok, err := cache.LastRun(ctx, "basic-chat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Passed)
	assert.Equal(t, int64(42), got.DurationMS)
	assert.True(t, runAt.Equal(lastRun))
}

func TestCacheLastRunMissingReturnsFalse(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	cache, err := OpenCache(dsn)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	_, _, ok, err := cache.LastRun(context.Background(), "never-run")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheUpsertOverwritesPriorResult(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	cache, err := OpenCache(dsn)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	require.NoError(t, cache.Record(ctx, TestResult{Name: "a", Passed: true}, time.Now()))
	require.NoError(t, cache.Record(ctx, TestResult{Name: "a", Passed: false, Error: "boom"}, time.Now()))

	got, _, ok, err := cache.LastRun(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Passed)
	assert.Equal(t, "boom", got.Error)
}

func TestCacheRegressionsSinceDetectsPassToFail(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cache.db")
	cache, err := OpenCache(dsn)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	require.NoError(t, cache.Record(ctx, TestResult{Name: "a", Passed: true}, time.Now()))

	regressions, err := cache.RegressionsSince(ctx, []TestResult{{Name: "a", Passed: false}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, regressions)
}
