package knowledge

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCatalog_InMemory(t *testing.T) {
	c, err := NewCatalog("")
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	doc := Document{ID: "doc-1", Title: "Guide", Category: CategoryProduction}
	if err := c.Put(doc, c.NextSequence()); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, ok := c.Get("doc-1")
	if !ok {
		t.Fatal("Get() did not find stored document")
	}
	if got.Title != "Guide" {
		t.Errorf("expected title 'Guide', got %q", got.Title)
	}
	if !c.Has("doc-1") {
		t.Error("Has() should report stored document")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	if err := c.Remove("doc-1"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if c.Has("doc-1") {
		t.Error("document still present after Remove()")
	}
}

func TestCatalog_PersistenceRoundtrip(t *testing.T) {
	dir := t.TempDir()

	c1, err := NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	docs := []Document{
		{ID: "a", Title: "First", Category: CategoryPreProduction, Chunks: 2, CreateAt: now},
		{ID: "b", Title: "Second", Category: CategoryProduction, Chunks: 1, CreateAt: now},
	}
	for _, d := range docs {
		if err := c1.Put(d, c1.NextSequence()); err != nil {
			t.Fatalf("Put(%q) failed: %v", d.ID, err)
		}
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Reopen and verify everything survived
	c2, err := NewCatalog(dir)
	if err != nil {
		t.Fatalf("reopening catalog failed: %v", err)
	}
	defer func() { _ = c2.Close() }()

	list := c2.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 documents after reload, got %d", len(list))
	}
	if list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("insertion order lost after reload: %q, %q", list[0].ID, list[1].ID)
	}
	if list[0].Chunks != 2 {
		t.Errorf("chunk count lost after reload: %d", list[0].Chunks)
	}

	// Sequence counter must continue, not reset
	if seq := c2.NextSequence(); seq != 3 {
		t.Errorf("sequence counter reset: got %d, want 3", seq)
	}
}

func TestCatalog_DirectoryLock(t *testing.T) {
	dir := t.TempDir()

	c1, err := NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}
	defer func() { _ = c1.Close() }()

	// Second catalog on the same directory must be refused
	if _, err := NewCatalog(dir); err == nil {
		t.Fatal("expected lock conflict opening catalog twice")
	}
}

func TestCatalog_LockReleasedOnClose(t *testing.T) {
	dir := t.TempDir()

	c1, err := NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	c2, err := NewCatalog(dir)
	if err != nil {
		t.Fatalf("reopening after Close() failed: %v", err)
	}
	_ = c2.Close()
}

func TestCatalog_AtomicSave(t *testing.T) {
	dir := t.TempDir()

	c, err := NewCatalog(dir)
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Put(Document{ID: "x"}, c.NextSequence()); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	// No leftover temp file after a successful save
	if _, err := os.Stat(filepath.Join(dir, catalogFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
	if _, err := os.Stat(filepath.Join(dir, catalogFile)); err != nil {
		t.Errorf("catalog file missing after save: %v", err)
	}
}
