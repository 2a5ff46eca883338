package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(filepath.Join(dir, "nested", "desired.db"))

	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer c.Close()

	if err := c.Save(ctx, "u1", json.RawMessage(`{"r":1}`)); err != nil {
		t.Fatalf("Save u1 r1: %v", err)
	}
	if err := c.Save(ctx, "u1", json.RawMessage(`{"r":2}`)); err != nil {
		t.Fatalf("Save u1 r2: %v", err)
	}
	if err := c.Save(ctx, "u2", json.RawMessage(`{"r":5}`)); err != nil {
		t.Fatalf("Save u2 r5: %v", err)
	}

	records, err := c.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected exactly 2 blobs, got %d", len(records))
	}

	byUID := map[string]json.RawMessage{}
	for _, r := range records {
		byUID[r.UID] = r.Spec
	}

	var r1 struct{ R int }
	if err := json.Unmarshal(byUID["u1"], &r1); err != nil {
		t.Fatalf("unmarshal u1: %v", err)
	}
	if r1.R != 2 {
		t.Fatalf("expected most recent save for u1 (r=2), got r=%d", r1.R)
	}

	var r2 struct{ R int }
	if err := json.Unmarshal(byUID["u2"], &r2); err != nil {
		t.Fatalf("unmarshal u2: %v", err)
	}
	if r2.R != 5 {
		t.Fatalf("expected r=5 for u2, got r=%d", r2.R)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "desired.db")
	c := New(path)

	if err := c.Init(ctx); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	c.Close()

	c2 := New(path)
	if err := c2.Init(ctx); err != nil {
		t.Fatalf("second Init on existing file: %v", err)
	}
	defer c2.Close()

	if err := c2.Save(ctx, "u1", json.RawMessage(`{"r":1}`)); err != nil {
		t.Fatalf("Save after reopen: %v", err)
	}
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	ctx := context.Background()
	c := New(filepath.Join(t.TempDir(), "desired.db"))
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer c.Close()

	err := c.Save(ctx, "u1", json.RawMessage(`not json`))
	if err == nil {
		t.Fatal("expected a SerializationError for invalid JSON")
	}
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected *SerializationError, got %T: %v", err, err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "desired.db")

	c1 := New(path)
	if err := c1.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c1.Save(ctx, "u1", json.RawMessage(`{"r":42}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	c1.Close()

	c2 := New(path)
	if err := c2.Init(ctx); err != nil {
		t.Fatalf("reopen Init: %v", err)
	}
	defer c2.Close()

	records, err := c2.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll after reopen: %v", err)
	}
	if len(records) != 1 || records[0].UID != "u1" {
		t.Fatalf("expected to find u1 after reopen, got %+v", records)
	}
}
