package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func migrationFile(sql string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(sql)}
}

func TestApplyRecordsAndSkips(t *testing.T) {
	db := openInMemoryDB(t)
	ctx := context.Background()
	migrations := fstest.MapFS{
		"002_more.sql":   migrationFile("-- +migrate Up\nALTER TABLE items ADD COLUMN name TEXT;\n-- +migrate Down\nDROP TABLE items;"),
		"001_create.sql": migrationFile("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY);"),
		"notes.txt":      migrationFile("ignored"),
	}

	applied, err := Apply(ctx, db, migrations, "")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !reflect.DeepEqual(applied, []string{"001_create.sql", "002_more.sql"}) {
		t.Fatalf("applied = %v", applied)
	}
	if !tableExists(t, db, "items") {
		t.Fatal("expected items table")
	}

	applied, err = Apply(ctx, db, migrations, "")
	if err != nil || len(applied) != 0 {
		t.Fatalf("replay Apply() = %v, %v", applied, err)
	}
	names, err := Applied(ctx, db)
	if err != nil || len(names) != 2 {
		t.Fatalf("Applied() = %v, %v", names, err)
	}
}

func TestApplyDoesNotRecordFailedMigration(t *testing.T) {
	db := openInMemoryDB(t)
	bad := fstest.MapFS{"001_bad.sql": migrationFile("CREAT table things(id INT);")}
	if err := ApplyMigrations(db, bad, ""); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 0 {
		t.Fatalf("failed migration recorded: %d rows", rows)
	}

	good := fstest.MapFS{"001_bad.sql": migrationFile("CREATE TABLE things(id INTEGER PRIMARY KEY);")}
	if err := ApplyMigrations(db, good, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("expected fixed migration recorded, got %d", rows)
	}
}

func TestApplyRespectsRoot(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"store/001_counters.sql": migrationFile("CREATE TABLE counters(name TEXT PRIMARY KEY);"),
	}
	applied, err := Apply(context.Background(), db, migrations, "/store/")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !reflect.DeepEqual(applied, []string{"store/001_counters.sql"}) {
		t.Fatalf("applied = %v", applied)
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if _, err := Apply(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestExtractUpMigration(t *testing.T) {
	tests := map[string]string{
		"CREATE TABLE a(x);": "CREATE TABLE a(x);",
		"-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;": "\nCREATE TABLE a(x);\n",
		"-- +migrate Up\nCREATE TABLE a(x);":                                    "\nCREATE TABLE a(x);",
	}
	for in, want := range tests {
		if got := ExtractUpMigration(in); got != want {
			t.Fatalf("ExtractUpMigration(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if !IsAlreadyExistsError(errors.New("table items already exists")) {
		t.Fatal("expected already exists match")
	}
	if IsAlreadyExistsError(errors.New("syntax error")) {
		t.Fatal("unexpected match")
	}
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
