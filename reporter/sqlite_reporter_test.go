package reporter

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestSQLiteReporterInsertsEventsIntoTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.sqlite")
	r, err := NewSQLiteReporter(path)
	if err != nil {
		t.Fatalf("NewSQLiteReporter: %v", err)
	}

	for _, e := range sampleEvents() {
		if err := r.Report(e); err != nil {
			t.Fatalf("Report: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var specCount int
	if err := db.QueryRow("select count(*) from Speciation").Scan(&specCount); err != nil {
		t.Fatalf("counting Speciation rows: %v", err)
	}
	if specCount != 1 {
		t.Errorf("Speciation row count = %d, want 1", specCount)
	}

	var dispCount int
	var parent int64
	if err := db.QueryRow("select count(*), max(parent) from Dispersal").Scan(&dispCount, &parent); err != nil {
		t.Fatalf("counting Dispersal rows: %v", err)
	}
	if dispCount != 1 {
		t.Errorf("Dispersal row count = %d, want 1", dispCount)
	}
	if parent != 42 {
		t.Errorf("Dispersal parent = %d, want 42", parent)
	}
}
