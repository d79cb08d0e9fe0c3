package store

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestCheckMigrations(t *testing.T) {
	tests := []struct {
		name     string
		versions []int
		wantErr  bool
	}{
		{"registered", nil, false},
		{"in order", []int{1, 2, 3}, false},
		{"gap", []int{1, 3}, true},
		{"not starting at one", []int{2}, true},
		{"duplicate", []int{1, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := migrations
			if tt.versions != nil {
				ms = nil
				for _, v := range tt.versions {
					ms = append(ms, migration{Version: v})
				}
			}
			if err := checkMigrations(ms); (err != nil) != tt.wantErr {
				t.Errorf("checkMigrations = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartLoadRun("sales", "testdata/sales.csv")
	if err != nil {
		t.Fatalf("StartLoadRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("expected run ID to be assigned")
	}

	run.RowsParsed = sql.NullInt64{Int64: 42, Valid: true}
	run.RowsFlagged = sql.NullInt64{Int64: 2, Valid: true}
	run.QualityFlags = sql.NullString{String: `{"quantity_negative":2}`, Valid: true}
	run.Success = true
	if err := store.CompleteLoadRun(run); err != nil {
		t.Fatalf("CompleteLoadRun: %v", err)
	}

	runs, err := store.RecentLoadRuns(10)
	if err != nil {
		t.Fatalf("RecentLoadRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Source != "sales" || got.URI != "testdata/sales.csv" {
		t.Errorf("source/uri = %q/%q", got.Source, got.URI)
	}
	if !got.Success {
		t.Error("Success = false, want true")
	}
	if got.RowsParsed.Int64 != 42 {
		t.Errorf("RowsParsed = %d, want 42", got.RowsParsed.Int64)
	}
	if !got.FinishedAt.Valid {
		t.Error("FinishedAt should be set")
	}
	if got.QualityFlags.String != `{"quantity_negative":2}` {
		t.Errorf("QualityFlags = %q", got.QualityFlags.String)
	}
}

func TestCompleteLoadRunNil(t *testing.T) {
	store := setupTestStore(t)
	if err := store.CompleteLoadRun(nil); err != nil {
		t.Errorf("CompleteLoadRun(nil) = %v, want nil", err)
	}
}

func TestLatestLoadRuns(t *testing.T) {
	store := setupTestStore(t)

	for _, tc := range []struct {
		source  string
		success bool
		missing bool
	}{
		{"sales", false, false},
		{"sales", true, false},
		{"forecast", false, true},
	} {
		run, err := store.StartLoadRun(tc.source, tc.source+".csv")
		if err != nil {
			t.Fatalf("StartLoadRun: %v", err)
		}
		run.Success = tc.success
		run.Missing = tc.missing
		if err := store.CompleteLoadRun(run); err != nil {
			t.Fatalf("CompleteLoadRun: %v", err)
		}
	}

	latest, err := store.LatestLoadRuns()
	if err != nil {
		t.Fatalf("LatestLoadRuns: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len(latest) = %d, want 2", len(latest))
	}
	if latest[0].Source != "forecast" || !latest[0].Missing {
		t.Errorf("latest[0] = %+v, want missing forecast run", latest[0])
	}
	if latest[1].Source != "sales" || !latest[1].Success {
		t.Errorf("latest[1] = %+v, want successful sales run", latest[1])
	}

	health, err := store.GetLoadHealth(1)
	if err != nil {
		t.Fatalf("GetLoadHealth: %v", err)
	}
	var total, failed, missing int
	for _, h := range health {
		total += h.TotalRuns
		failed += h.FailedRuns
		missing += h.MissingRuns
	}
	if total != 3 || failed != 1 || missing != 1 {
		t.Errorf("health totals = %d/%d/%d, want 3/1/1", total, failed, missing)
	}
}
