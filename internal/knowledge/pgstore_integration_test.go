//go:build integration
// +build integration

package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/reelwise/reelwise/internal/log"
	"github.com/reelwise/reelwise/internal/testutil"
)

// basisVector returns a 768-dim unit vector along the given axis.
// Documents embedded along different axes are orthogonal, which makes
// similarity ordering fully deterministic.
func basisVector(axis int) []float32 {
	vec := make([]float32, 768)
	vec[axis] = 1
	return vec
}

// nearVector returns a 768-dim vector close to the given axis but not
// identical, producing a similarity strictly between 0 and 1.
func nearVector(axis int) []float32 {
	vec := make([]float32, 768)
	vec[axis] = 1
	vec[(axis+1)%768] = 0.2
	return vec
}

func setupPGStore(t *testing.T) *PGStore {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	g := genkit.Init(context.Background())
	mock := testutil.NewMockEmbedder(768)
	mock.SetVector("Storyboards map every shot before cameras roll.", basisVector(0))
	mock.SetVector("Cinematographers light the set during principal photography.", basisVector(1))
	mock.SetVector("Editors assemble the final cut in post.", basisVector(2))
	mock.SetVector("how do storyboards work", basisVector(0))
	mock.SetVector("principal photography lighting", nearVector(1))

	store := NewPGStore(NewQueries(db.Pool), mock.RegisterEmbedder(g), 400, log.NewNop())
	return store
}

// TestPGStoreIntegration exercises the full document lifecycle against a
// real pgvector instance.
//
// Run with: go test -tags=integration ./internal/knowledge -v
func TestPGStoreIntegration(t *testing.T) {
	store := setupPGStore(t)
	ctx := context.Background()

	preDoc := Document{
		ID:       "kb:storyboards",
		Title:    "Storyboarding",
		Content:  "Storyboards map every shot before cameras roll.",
		Category: CategoryPreProduction,
	}
	prodDoc := Document{
		ID:       "kb:cinematography",
		Title:    "Set Lighting",
		Content:  "Cinematographers light the set during principal photography.",
		Category: CategoryProduction,
	}
	postDoc := Document{
		ID:       "kb:editing",
		Title:    "The Final Cut",
		Content:  "Editors assemble the final cut in post.",
		Category: CategoryPostProduction,
	}

	for _, doc := range []Document{preDoc, prodDoc, postDoc} {
		added, err := store.Add(ctx, doc)
		if err != nil {
			t.Fatalf("Add(%q) unexpected error: %v", doc.ID, err)
		}
		if added.Chunks != 1 {
			t.Errorf("Add(%q) chunks = %d, want 1", doc.ID, added.Chunks)
		}
	}

	t.Run("get round trip", func(t *testing.T) {
		got, err := store.Get(ctx, "kb:storyboards")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if got.Title != "Storyboarding" {
			t.Errorf("Get() title = %q, want %q", got.Title, "Storyboarding")
		}
		if got.Category != CategoryPreProduction {
			t.Errorf("Get() category = %q, want %q", got.Category, CategoryPreProduction)
		}
	})

	t.Run("search ranks by cosine similarity", func(t *testing.T) {
		results, err := store.Search(ctx, "how do storyboards work", WithTopK(3))
		if err != nil {
			t.Fatalf("Search() unexpected error: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("Search() returned %d results, want 3", len(results))
		}
		if results[0].DocumentID != "kb:storyboards" {
			t.Errorf("Search() top result = %q, want %q", results[0].DocumentID, "kb:storyboards")
		}
		if results[0].Similarity < 0.99 {
			t.Errorf("Search() top similarity = %f, want ~1.0", results[0].Similarity)
		}
	})

	t.Run("search with partial similarity", func(t *testing.T) {
		results, err := store.Search(ctx, "principal photography lighting", WithTopK(1))
		if err != nil {
			t.Fatalf("Search() unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("Search() returned %d results, want 1", len(results))
		}
		if results[0].DocumentID != "kb:cinematography" {
			t.Errorf("Search() top result = %q, want %q", results[0].DocumentID, "kb:cinematography")
		}
		if sim := results[0].Similarity; sim <= 0.5 || sim >= 1.0 {
			t.Errorf("Search() similarity = %f, want in (0.5, 1.0)", sim)
		}
	})

	t.Run("category filter", func(t *testing.T) {
		results, err := store.Search(ctx, "how do storyboards work",
			WithTopK(3), WithCategory(CategoryPostProduction))
		if err != nil {
			t.Fatalf("Search() unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("Search() with filter returned %d results, want 1", len(results))
		}
		if results[0].DocumentID != "kb:editing" {
			t.Errorf("Search() filtered result = %q, want %q", results[0].DocumentID, "kb:editing")
		}
	})

	t.Run("filter to zero is not an error", func(t *testing.T) {
		if err := store.Delete(ctx, "kb:editing"); err != nil {
			t.Fatalf("Delete() unexpected error: %v", err)
		}
		results, err := store.Search(ctx, "how do storyboards work",
			WithTopK(3), WithCategory(CategoryPostProduction))
		if err != nil {
			t.Fatalf("Search() unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Search() after delete returned %d results, want 0", len(results))
		}
	})

	t.Run("re-add replaces chunks", func(t *testing.T) {
		updated := preDoc
		updated.Content = "Storyboards map every shot before cameras roll."
		updated.Title = "Storyboarding Revised"
		if _, err := store.Add(ctx, updated); err != nil {
			t.Fatalf("Add() replace unexpected error: %v", err)
		}

		got, err := store.Get(ctx, "kb:storyboards")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if got.Title != "Storyboarding Revised" {
			t.Errorf("Get() title after replace = %q, want %q", got.Title, "Storyboarding Revised")
		}

		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count() unexpected error: %v", err)
		}
		if count != 2 {
			t.Errorf("Count() after replace = %d, want 2", count)
		}
	})

	t.Run("documents in insertion order", func(t *testing.T) {
		docs, err := store.Documents(ctx)
		if err != nil {
			t.Fatalf("Documents() unexpected error: %v", err)
		}
		// kb:editing was deleted; replacing kb:storyboards keeps its seq
		want := []string{"kb:storyboards", "kb:cinematography"}
		if len(docs) != len(want) {
			t.Fatalf("Documents() returned %d docs, want %d", len(docs), len(want))
		}
		for i, id := range want {
			if docs[i].ID != id {
				t.Errorf("Documents()[%d].ID = %q, want %q", i, docs[i].ID, id)
			}
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() unexpected error: %v", err)
		}
		if stats.Documents != 2 {
			t.Errorf("Stats() documents = %d, want 2", stats.Documents)
		}
		if stats.Chunks != 2 {
			t.Errorf("Stats() chunks = %d, want 2", stats.Chunks)
		}
		if got := stats.ByCategory[CategoryPreProduction]; got != 1 {
			t.Errorf("Stats() pre-production count = %d, want 1", got)
		}
	})

	t.Run("delete missing document", func(t *testing.T) {
		err := store.Delete(ctx, "kb:absent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(absent) error = %v, want ErrNotFound", err)
		}
	})
}
