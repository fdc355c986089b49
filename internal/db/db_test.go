package db

import (
	"path/filepath"
	"testing"

	"github.com/crosswire/intercom/internal/models"
)

func TestOpen_SqliteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	gdb, err := Open("sqlite", path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	entry := models.CallHistoryEntry{CallID: "c1", Direction: models.DirectionOut, Label: "EDDF_TWR"}
	if err := gdb.Create(&entry).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	var got models.CallHistoryEntry
	if err := gdb.First(&got, "call_id = ?", "c1").Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if got.Label != "EDDF_TWR" {
		t.Errorf("label = %q, want EDDF_TWR", got.Label)
	}
}

func TestOpen_DefaultsToSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if _, err := Open("", path, ""); err != nil {
		t.Fatalf("open with empty driver: %v", err)
	}
}

func TestOpen_MissingSqlitePath(t *testing.T) {
	if _, err := Open("sqlite", "", ""); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestOpen_MissingMysqlDSN(t *testing.T) {
	if _, err := Open("mysql", "", ""); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("postgres", "", ""); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestAutoMigrate_InMemory(t *testing.T) {
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !gdb.Migrator().HasTable(&models.CallHistoryEntry{}) {
		t.Error("expected call history table to exist")
	}
}
