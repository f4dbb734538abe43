package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

// catalogFile is the document catalog filename inside the data directory.
const catalogFile = "catalog.json"

// Catalog tracks document-level metadata alongside the vector index.
// The vector store only knows chunks; the catalog is the authoritative
// list of documents, their categories, and their insertion order.
//
// When backed by a data directory the catalog is persisted as JSON and
// the directory is guarded by an exclusive file lock so two processes
// cannot corrupt the index.
//
// Catalog is safe for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	docs map[string]catalogEntry
	seq  int64 // monotonically increasing insertion counter

	path string // empty = in-memory only
	lock *flock.Flock
}

// catalogEntry is the persisted form of a document's metadata.
type catalogEntry struct {
	Document
	Seq int64 `json:"seq"`
}

// catalogState is the on-disk format.
type catalogState struct {
	Seq  int64          `json:"seq"`
	Docs []catalogEntry `json:"docs"`
}

// NewCatalog opens (or creates) the catalog in dataDir.
// An empty dataDir yields a purely in-memory catalog for tests.
func NewCatalog(dataDir string) (*Catalog, error) {
	c := &Catalog{docs: make(map[string]catalogEntry)}
	if dataDir == "" {
		return c, nil
	}

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Exclusive lock: a second process opening the same index would
	// silently clobber both the catalog and the chromem files
	c.lock = flock.New(filepath.Join(dataDir, ".lock"))
	locked, err := c.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking data directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("data directory %q is locked by another process", dataDir)
	}

	c.path = filepath.Join(dataDir, catalogFile)
	if err := c.load(); err != nil {
		_ = c.lock.Unlock()
		return nil, err
	}
	return c, nil
}

// load reads the persisted catalog. A missing file is an empty catalog.
func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading catalog: %w", err)
	}

	var state catalogState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}

	c.seq = state.Seq
	for _, e := range state.Docs {
		c.docs[e.ID] = e
	}
	return nil
}

// save writes the catalog atomically (temp file + rename).
// Caller must hold c.mu.
func (c *Catalog) save() error {
	if c.path == "" {
		return nil
	}

	state := catalogState{Seq: c.seq, Docs: make([]catalogEntry, 0, len(c.docs))}
	for _, e := range c.docs {
		state.Docs = append(state.Docs, e)
	}
	sort.Slice(state.Docs, func(i, j int) bool { return state.Docs[i].Seq < state.Docs[j].Seq })

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing catalog: %w", err)
	}
	return nil
}

// NextSequence reserves the next insertion sequence number.
func (c *Catalog) NextSequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Put records (or replaces) a document entry.
func (c *Catalog) Put(doc Document, seq int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.ID] = catalogEntry{Document: doc, Seq: seq}
	return c.save()
}

// Get returns a document entry by ID.
func (c *Catalog) Get(id string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.docs[id]
	return e.Document, ok
}

// Has reports whether a document exists.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.docs[id]
	return ok
}

// Remove deletes a document entry.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
	return c.save()
}

// List returns all documents ordered by insertion sequence.
func (c *Catalog) List() []Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]catalogEntry, 0, len(c.docs))
	for _, e := range c.docs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e.Document)
	}
	return docs
}

// Len returns the number of documents.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Close releases the directory lock.
func (c *Catalog) Close() error {
	if c.lock == nil {
		return nil
	}
	if err := c.lock.Unlock(); err != nil {
		return fmt.Errorf("unlocking data directory: %w", err)
	}
	return nil
}
