package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelwise/reelwise/internal/knowledge"
)

func TestKnowledgeAddAndList(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/knowledge", map[string]any{
		"title":    "Script Breakdown",
		"content":  "A script breakdown tags every element each scene needs.",
		"category": "pre-production",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decode[docSummary](t, rec)
	if created.ID == "" {
		t.Error("created document has no id")
	}
	if created.Category != knowledge.CategoryPreProduction {
		t.Errorf("category = %q, want pre-production", created.Category)
	}

	list := decode[docListResponse](t, f.do(t, http.MethodGet, "/api/v1/knowledge", nil))
	if list.Count != 1 || len(list.Documents) != 1 {
		t.Fatalf("list count = %d, documents = %d, want 1", list.Count, len(list.Documents))
	}
	if list.Documents[0].Title != "Script Breakdown" {
		t.Errorf("title = %q", list.Documents[0].Title)
	}
}

func TestKnowledgeAddValidation(t *testing.T) {
	f := newTestServer(t, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty content", map[string]any{"title": "Empty", "content": "   "}},
		{"bad category", map[string]any{"title": "X", "content": "some text", "category": "marketing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/knowledge", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestKnowledgeListByCategory(t *testing.T) {
	f := newTestServer(t, nil)

	docs := []map[string]any{
		{"title": "Casting", "content": "casting content", "category": "pre-production"},
		{"title": "Call Sheets", "content": "call sheet content", "category": "production"},
		{"title": "Foley", "content": "foley content", "category": "post-production"},
	}
	for _, d := range docs {
		if rec := f.do(t, http.MethodPost, "/api/v1/knowledge", d); rec.Code != http.StatusCreated {
			t.Fatalf("add status = %d", rec.Code)
		}
	}

	list := decode[docListResponse](t, f.do(t, http.MethodGet, "/api/v1/knowledge/category/production", nil))
	if list.Count != 1 {
		t.Fatalf("production count = %d, want 1", list.Count)
	}
	if list.Documents[0].Title != "Call Sheets" {
		t.Errorf("title = %q, want Call Sheets", list.Documents[0].Title)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/knowledge/category/marketing", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown category status = %d, want 400", rec.Code)
	}
}

func TestKnowledgeDelete(t *testing.T) {
	f := newTestServer(t, nil)

	created := decode[docSummary](t, f.do(t, http.MethodPost, "/api/v1/knowledge", map[string]any{
		"title": "Temp", "content": "temporary document",
	}))

	if rec := f.do(t, http.MethodDelete, "/api/v1/knowledge/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/v1/knowledge/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestKnowledgeSearch(t *testing.T) {
	f := newTestServer(t, nil)
	f.store.results = []knowledge.Result{
		{
			DocumentID: "kb:grading",
			ChunkID:    "kb:grading#0",
			Title:      "Color Grading",
			Content:    "Color grading sets the final look scene by scene.",
			Category:   knowledge.CategoryPostProduction,
			Similarity: 0.88,
		},
	}

	rec := f.do(t, http.MethodGet, "/api/v1/knowledge/search?q=color+grading&top_k=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[searchResponse](t, rec)
	if resp.Query != "color grading" {
		t.Errorf("query = %q", resp.Query)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocumentID != "kb:grading" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Similarity != 0.88 {
		t.Errorf("similarity = %v", resp.Results[0].Similarity)
	}
}

func TestKnowledgeSearchValidation(t *testing.T) {
	f := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
	}{
		{"missing q", "/api/v1/knowledge/search"},
		{"zero top_k", "/api/v1/knowledge/search?q=x&top_k=0"},
		{"huge top_k", "/api/v1/knowledge/search?q=x&top_k=100"},
		{"non-numeric top_k", "/api/v1/knowledge/search?q=x&top_k=many"},
		{"bad category", "/api/v1/knowledge/search?q=x&category=marketing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(t, http.MethodGet, tt.path, nil); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestKnowledgeStats(t *testing.T) {
	f := newTestServer(t, nil)

	for _, d := range []map[string]any{
		{"title": "A", "content": "content a", "category": "production"},
		{"title": "B", "content": "content b", "category": "production"},
		{"title": "C", "content": "content c", "category": "post-production"},
	} {
		if rec := f.do(t, http.MethodPost, "/api/v1/knowledge", d); rec.Code != http.StatusCreated {
			t.Fatalf("add status = %d", rec.Code)
		}
	}

	stats := decode[knowledge.Stats](t, f.do(t, http.MethodGet, "/api/v1/knowledge/stats", nil))
	if stats.Documents != 3 {
		t.Errorf("documents = %d, want 3", stats.Documents)
	}
	if stats.ByCategory[knowledge.CategoryProduction] != 2 {
		t.Errorf("production count = %d, want 2", stats.ByCategory[knowledge.CategoryProduction])
	}
}

func TestKnowledgeUpload(t *testing.T) {
	f := newTestServer(t, nil)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "sound_mixing.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("The final mix balances dialogue, music, and effects.")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("category", "post-production"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decode[docSummary](t, rec)
	if created.Title != "Sound Mixing" {
		t.Errorf("title = %q, want Sound Mixing", created.Title)
	}
	if created.Category != knowledge.CategoryPostProduction {
		t.Errorf("category = %q, want post-production", created.Category)
	}
}

func TestKnowledgeUploadRejectsUnsupported(t *testing.T) {
	f := newTestServer(t, nil)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "footage.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("binary")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestKnowledgeUploadMissingFile(t *testing.T) {
	f := newTestServer(t, nil)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("category", "production"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
