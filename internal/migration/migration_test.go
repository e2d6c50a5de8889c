package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func testMigrations(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestGetCurrentVersion(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, testMigrations(map[string]string{
		"001_test.sql": "CREATE TABLE test (id INTEGER);",
	}), DriverSQLite)

	version, err := runner.GetCurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 for a fresh database, got %d", version)
	}
}

func TestApplyMigrations(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, testMigrations(map[string]string{
		"001_users.sql":  "CREATE TABLE users (id TEXT PRIMARY KEY);",
		"002_habits.sql": "CREATE TABLE habits (id TEXT PRIMARY KEY, user_id TEXT);\nCREATE INDEX idx_habits_user ON habits(user_id);",
		"README.md":      "not a migration",
	}), DriverSQLite)

	var logs []string
	count, err := runner.ApplyMigrations(ctx, func(msg string) { logs = append(logs, msg) })
	if err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 migrations applied, got %d", count)
	}
	if len(logs) == 0 {
		t.Error("expected progress messages")
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	// Second run is a no-op
	count, err = runner.ApplyMigrations(ctx, nil)
	if err != nil {
		t.Fatalf("second ApplyMigrations failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 migrations on second run, got %d", count)
	}

	if err := runner.ValidateVersion(ctx); err != nil {
		t.Errorf("ValidateVersion failed on an up-to-date database: %v", err)
	}
}

func TestApplyMigrationsRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, testMigrations(map[string]string{
		"001_ok.sql":     "CREATE TABLE ok (id INTEGER);",
		"002_broken.sql": "CREATE TABLE broken (id INTEGER); THIS IS NOT SQL;",
	}), DriverSQLite)

	count, err := runner.ApplyMigrations(ctx, nil)
	if err == nil {
		t.Fatal("expected error from broken migration")
	}
	if count != 1 {
		t.Errorf("expected 1 applied migration before failure, got %d", count)
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version to stay at 1, got %d", version)
	}
}

func TestReadMigrationFilesErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "missing underscore",
			files: map[string]string{"001.sql": "SELECT 1;"},
			want:  "invalid migration filename",
		},
		{
			name:  "non numeric version",
			files: map[string]string{"abc_init.sql": "SELECT 1;"},
			want:  "invalid version number",
		},
		{
			name:  "zero version",
			files: map[string]string{"000_init.sql": "SELECT 1;"},
			want:  "version must be at least 1",
		},
		{
			name:  "duplicate version",
			files: map[string]string{"001_a.sql": "SELECT 1;", "1_b.sql": "SELECT 1;"},
			want:  "duplicate migration version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(nil, testMigrations(tt.files), DriverSQLite)
			_, err := runner.ReadMigrationFiles()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ReadMigrationFiles() error = %v, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, testMigrations(map[string]string{
		"001_init.sql": "CREATE TABLE a (id INTEGER);",
	}), DriverSQLite)

	if err := runner.ValidateVersion(ctx); err == nil || !strings.Contains(err.Error(), "behind") {
		t.Errorf("expected behind error on a fresh database, got %v", err)
	}

	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (5)"); err != nil {
		t.Fatalf("failed to seed version: %v", err)
	}
	if err := runner.ValidateVersion(ctx); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("expected newer error, got %v", err)
	}
}

func TestInsertVersionSQL(t *testing.T) {
	if got := NewRunner(nil, nil, DriverPostgres).insertVersionSQL(); !strings.Contains(got, "$1") {
		t.Errorf("postgres insert should use $1 placeholder, got %q", got)
	}
	if got := NewRunner(nil, nil, DriverSQLite).insertVersionSQL(); !strings.Contains(got, "?") {
		t.Errorf("sqlite insert should use ? placeholder, got %q", got)
	}
}
