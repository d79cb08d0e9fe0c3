package store

import (
	"database/sql"
	"time"
)

// LoadRun audits a single attempt to read one source.
type LoadRun struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Source       string // "sales", "forecast"
	URI          string
	RowsParsed   sql.NullInt64
	RowsSkipped  sql.NullInt64
	RowsFlagged  sql.NullInt64
	QualityFlags sql.NullString // JSON object of flag counts
	Missing      bool
	Success      bool
	ErrorMessage sql.NullString
}

// StartLoadRun creates a new load run record and returns it.
func (s *Store) StartLoadRun(source, uri string) (*LoadRun, error) {
	run := &LoadRun{
		StartedAt: time.Now().UTC(),
		Source:    source,
		URI:       uri,
	}

	result, err := s.db.Exec(`
		INSERT INTO load_runs (started_at, source, uri, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Source, run.URI)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteLoadRun updates the load run with results.
func (s *Store) CompleteLoadRun(run *LoadRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE load_runs SET
			finished_at = ?,
			rows_parsed = ?,
			rows_skipped = ?,
			rows_flagged = ?,
			quality_flags = ?,
			missing = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RowsParsed, run.RowsSkipped, run.RowsFlagged, run.QualityFlags,
		run.Missing, run.Success, run.ErrorMessage, run.ID)
	return err
}

const loadRunColumns = `id, started_at, finished_at, source, uri, rows_parsed, rows_skipped,
	rows_flagged, quality_flags, missing, success, error_message`

func scanLoadRuns(rows *sql.Rows) ([]LoadRun, error) {
	defer rows.Close()

	var results []LoadRun
	for rows.Next() {
		var r LoadRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.URI,
			&r.RowsParsed, &r.RowsSkipped, &r.RowsFlagged, &r.QualityFlags,
			&r.Missing, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RecentLoadRuns returns the most recent load runs, newest first.
func (s *Store) RecentLoadRuns(limit int) ([]LoadRun, error) {
	rows, err := s.db.Query(`
		SELECT `+loadRunColumns+`
		FROM load_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return scanLoadRuns(rows)
}

// LatestLoadRuns returns the newest run per source.
func (s *Store) LatestLoadRuns() ([]LoadRun, error) {
	rows, err := s.db.Query(`
		SELECT ` + loadRunColumns + `
		FROM load_runs
		WHERE id IN (SELECT MAX(id) FROM load_runs GROUP BY source)
		ORDER BY source
	`)
	if err != nil {
		return nil, err
	}
	return scanLoadRuns(rows)
}

// LoadHealthSummary aggregates load runs per day and source.
type LoadHealthSummary struct {
	Date        string
	Source      string
	TotalRuns   int
	SuccessRuns int
	MissingRuns int
	FailedRuns  int
	TotalRows   int64
	FlaggedRows int64
}

// GetLoadHealth returns load health summaries for the last N days.
func (s *Store) GetLoadHealth(days int) ([]LoadHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			source,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN missing THEN 1 ELSE 0 END) as missing_runs,
			SUM(CASE WHEN NOT success AND NOT missing THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(rows_parsed), 0) as total_rows,
			COALESCE(SUM(rows_flagged), 0) as flagged_rows
		FROM load_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date, source
		ORDER BY date DESC, source
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LoadHealthSummary
	for rows.Next() {
		var h LoadHealthSummary
		if err := rows.Scan(&h.Date, &h.Source, &h.TotalRuns, &h.SuccessRuns,
			&h.MissingRuns, &h.FailedRuns, &h.TotalRows, &h.FlaggedRows); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
