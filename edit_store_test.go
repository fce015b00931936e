package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"PrefEditor/pkg/types"
)

func setupTestEditStore(t *testing.T) *EditStore {
	t.Helper()
	store, err := NewEditStore(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Failed to create EditStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEditStoreCreation(t *testing.T) {
	store := setupTestEditStore(t)
	if _, err := os.Stat(store.dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file should exist at %s", store.dbPath)
	}
}

func TestEditStoreRecordAndList(t *testing.T) {
	store := setupTestEditStore(t)

	records := []types.EditRecord{
		{SessionID: "s1", Target: "a", Operation: "change", Matcher: `<int name="x" value="1" />`, Content: `<int name="x" value="2" />`, Status: EditStatusApplied, CreatedAt: 1000},
		{SessionID: "s1", Target: "a", Operation: "delete", Matcher: `<int name="y" value="1" />`, Status: EditStatusFailed, Error: "exit 2", CreatedAt: 2000},
		{SessionID: "s2", Target: "b", Operation: "add", Matcher: "</map>", Content: `<long name="z" value="3" />`, Status: EditStatusApplied, CreatedAt: 3000},
	}
	for _, rec := range records {
		if err := store.RecordEdit(rec); err != nil {
			t.Fatalf("RecordEdit failed: %v", err)
		}
	}

	all, err := store.ListEdits(EditQuery{})
	if err != nil {
		t.Fatalf("ListEdits failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if all[0].Target != "b" || all[2].Operation != "change" {
		t.Errorf("Expected newest first, got %+v", all)
	}
	for _, rec := range all {
		if rec.ID == "" {
			t.Error("Expected generated ID")
		}
	}
	if all[0].Error != "" || all[1].Error != "exit 2" {
		t.Errorf("Unexpected error fields: %q, %q", all[0].Error, all[1].Error)
	}
	if all[1].Content != "" {
		t.Errorf("Delete should have no content, got %q", all[1].Content)
	}

	byTarget, _ := store.ListEdits(EditQuery{Target: "a"})
	if len(byTarget) != 2 {
		t.Errorf("Expected 2 records for target a, got %d", len(byTarget))
	}
	failed, _ := store.ListEdits(EditQuery{Status: EditStatusFailed})
	if len(failed) != 1 || failed[0].Operation != "delete" {
		t.Errorf("Expected the failed delete, got %+v", failed)
	}
	limited, _ := store.ListEdits(EditQuery{SessionID: "s1", Limit: 1})
	if len(limited) != 1 || limited[0].Operation != "delete" {
		t.Errorf("Expected newest record of s1, got %+v", limited)
	}
}

func TestEditStoreCleanup(t *testing.T) {
	store := setupTestEditStore(t)
	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	store.RecordEdit(types.EditRecord{SessionID: "s", Target: "t", Operation: "add", Status: EditStatusApplied, CreatedAt: old})
	store.RecordEdit(types.EditRecord{SessionID: "s", Target: "t", Operation: "add", Status: EditStatusApplied})

	removed, err := store.CleanupOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed record, got %d", removed)
	}
	remaining, _ := store.ListEdits(EditQuery{})
	if len(remaining) != 1 {
		t.Errorf("Expected 1 remaining record, got %d", len(remaining))
	}
}
