package chat

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reelwise/reelwise/internal/knowledge"
)

func TestExtractCitations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{
			name:   "no citations",
			answer: "Lighting a set takes planning.",
			want:   nil,
		},
		{
			name:   "source tag",
			answer: "Three-point lighting is standard [source: kb:lighting].",
			want:   []string{"kb:lighting"},
		},
		{
			name:   "source tag with spacing",
			answer: "See [source:  kb:lighting ] for details.",
			want:   []string{"kb:lighting"},
		},
		{
			name:   "prose citation",
			answer: "According to the Production Handbook, call sheets go out nightly.",
			want:   []string{"the Production Handbook"},
		},
		{
			name:   "multiple patterns",
			answer: "Based on Set Lighting Guide, use diffusion [source: kb:lighting].",
			want:   []string{"kb:lighting", "Set Lighting Guide"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractCitations(tt.answer)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("extractCitations() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterCitations(t *testing.T) {
	t.Parallel()

	sources := []knowledge.Result{
		{DocumentID: "kb:lighting", Title: "Set Lighting Guide"},
		{DocumentID: "kb:sound", Title: "Sound Recording"},
	}

	tests := []struct {
		name      string
		citations []string
		want      []string
	}{
		{
			name:      "exact id match",
			citations: []string{"kb:lighting"},
			want:      []string{"kb:lighting"},
		},
		{
			name:      "title containment",
			citations: []string{"the Set Lighting Guide"},
			want:      []string{"kb:lighting"},
		},
		{
			name:      "hallucinated citation dropped",
			citations: []string{"kb:absent", "The Imaginary Handbook"},
			want:      nil,
		},
		{
			name:      "mixed keeps retrieval order",
			citations: []string{"kb:sound", "kb:lighting"},
			want:      []string{"kb:lighting", "kb:sound"},
		},
		{
			name:      "duplicates collapsed",
			citations: []string{"kb:lighting", "Set Lighting Guide"},
			want:      []string{"kb:lighting"},
		},
		{
			name:      "empty citations",
			citations: nil,
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterCitations(tt.citations, sources)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("filterCitations() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterCitationsNoSources(t *testing.T) {
	t.Parallel()
	if got := filterCitations([]string{"kb:anything"}, nil); got != nil {
		t.Errorf("filterCitations() with no sources = %v, want nil", got)
	}
}
