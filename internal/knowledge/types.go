package knowledge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrEmptyContent indicates a document with no usable text.
	ErrEmptyContent = errors.New("empty document content")

	// ErrInvalidCategory indicates an unknown production category.
	ErrInvalidCategory = errors.New("invalid category")
)

// Category identifies a stage of movie production. Documents are tagged
// with exactly one category; searches may be restricted to one or span all.
type Category string

const (
	CategoryPreProduction  Category = "pre-production"
	CategoryProduction     Category = "production"
	CategoryPostProduction Category = "post-production"
	CategoryAllStages      Category = "all-stages"
)

// Categories lists every assignable category, in pipeline order.
// CategoryAllStages is a valid document tag as well as a search wildcard.
func Categories() []Category {
	return []Category{
		CategoryPreProduction,
		CategoryProduction,
		CategoryPostProduction,
		CategoryAllStages,
	}
}

// ParseCategory validates a raw category string.
// An empty string defaults to CategoryAllStages.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryAllStages, nil
	}
	c := Category(s)
	switch c {
	case CategoryPreProduction, CategoryProduction, CategoryPostProduction, CategoryAllStages:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q, must be one of: pre-production, production, post-production, all-stages", ErrInvalidCategory, s)
}

// Document represents a knowledge document before chunking.
// Metadata must be map[string]string to comply with chromem-go requirements.
type Document struct {
	ID       string            // Unique identifier (assigned on Add if empty)
	Title    string            // Human-readable title
	Content  string            // Document text content
	Category Category          // Production stage tag
	Source   string            // Origin (file path, upload, api)
	Metadata map[string]string // Optional extra metadata
	Chunks   int               // Number of chunks stored (set on Add)
	CreateAt time.Time         // Creation timestamp
}

// Result represents a single search result with similarity score.
// A Result carries one chunk of a document, not the whole document.
type Result struct {
	DocumentID string            // Parent document ID
	ChunkID    string            // Stored chunk ID ("docID#n")
	Title      string            // Parent document title
	Content    string            // Chunk text
	Category   Category          // Parent document category
	Metadata   map[string]string // Chunk metadata
	Similarity float32           // Cosine similarity score (0-1)
	sequence   int64             // Insertion order, used to break similarity ties
}

// Stats summarizes the index contents.
type Stats struct {
	Documents  int              `json:"documents"`
	Chunks     int              `json:"chunks"`
	ByCategory map[Category]int `json:"by_category"`
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK     int
	category Category
	timeout  time.Duration
}

// WithTopK sets the maximum number of results to return.
// Default is 5 if not specified.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithCategory restricts search results to a single production stage.
// CategoryAllStages (the default) searches the whole index.
func WithCategory(cat Category) SearchOption {
	return func(c *searchConfig) {
		c.category = cat
	}
}

// WithTimeout overrides the per-search timeout. Default is 10 seconds.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = d
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:     5, // Default
		category: CategoryAllStages,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
