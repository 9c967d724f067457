package golden

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache persists run history for the corpus (pass/fail, duration, last-run
// timestamp per case) in a SQLite database, following the teacher's
// modernc.org/sqlite usage (pure-Go, no CGO). It is optional: a Runner
// works fine without one, this only lets a CLI answer "what changed since
// last run" without re-executing every case.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates a SQLite database at dsn and ensures its
// schema exists.
func OpenCache(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("golden: opening cache db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("golden: setting cache pragmas: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS run_history (
		test_name TEXT PRIMARY KEY,
		passed BOOLEAN NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		last_run TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("golden: migrating cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Record upserts result's outcome for result.Name, stamped with runAt.
func (c *Cache) Record(ctx context.Context, result TestResult, runAt time.Time) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO run_history (test_name, passed, error, duration_ms, last_run)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(test_name) DO UPDATE SET
			passed = excluded.passed,
			error = excluded.error,
			duration_ms = excluded.duration_ms,
			last_run = excluded.last_run
	`, result.Name, result.Passed, result.Error, result.DurationMS, runAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("golden: recording result for %q: %w", result.Name, err)
	}
	return nil
}

// RecordAll records every result in results, stamped with the same runAt.
func (c *Cache) RecordAll(ctx context.Context, results []TestResult, runAt time.Time) error {
	for _, r := range results {
		if err := c.Record(ctx, r, runAt); err != nil {
			return err
		}
	}
	return nil
}

// LastRun returns the most recently recorded outcome for testName, or
// false if it has never been recorded.
func (c *Cache) LastRun(ctx context.Context, testName string) (TestResult, time.Time, bool, error) {
	var result TestResult
	var lastRunStr string
	result.Name = testName

	row := c.db.QueryRowContext(ctx, `SELECT passed, error, duration_ms, last_run FROM run_history WHERE test_name = ?`, testName)
	if err := row.Scan(&result.Passed, &result.Error, &result.DurationMS, &lastRunStr); err != nil {
		if err == sql.ErrNoRows {
			return TestResult{}, time.Time{}, false, nil
		}
		return TestResult{}, time.Time{}, false, fmt.Errorf("golden: reading last run for %q: %w", testName, err)
	}
	lastRun, err := time.Parse(time.RFC3339, lastRunStr)
	if err != nil {
		return TestResult{}, time.Time{}, false, fmt.Errorf("golden: parsing last_run timestamp for %q: %w", testName, err)
	}
	return result, lastRun, true, nil
}

// RegressionsSince compares results against the cache's prior recorded
// outcome for each case (if any) and returns the names of cases that
// passed last time but failed this time.
func (c *Cache) RegressionsSince(ctx context.Context, results []TestResult) ([]string, error) {
	var regressions []string
	for _, r := range results {
		prior, _, ok, err := c.LastRun(ctx, r.Name)
		if err != nil {
			return nil, err
		}
		if ok && prior.Passed && !r.Passed {
			regressions = append(regressions, r.Name)
		}
	}
	return regressions, nil
}
