package knowledge

import (
	"errors"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input   string
		want    Category
		wantErr bool
	}{
		{"", CategoryAllStages, false},
		{"pre-production", CategoryPreProduction, false},
		{"production", CategoryProduction, false},
		{"post-production", CategoryPostProduction, false},
		{"all-stages", CategoryAllStages, false},
		{"distribution", "", true},
		{"PRE-PRODUCTION", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCategory) {
					t.Errorf("ParseCategory(%q) error = %v, want ErrInvalidCategory", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCategory(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCategory(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildSearchConfig_Defaults(t *testing.T) {
	cfg := buildSearchConfig(nil)
	if cfg.topK != 5 {
		t.Errorf("default topK = %d, want 5", cfg.topK)
	}
	if cfg.category != CategoryAllStages {
		t.Errorf("default category = %q, want %q", cfg.category, CategoryAllStages)
	}
}

func TestBuildSearchConfig_Options(t *testing.T) {
	cfg := buildSearchConfig([]SearchOption{
		WithTopK(12),
		WithCategory(CategoryProduction),
	})
	if cfg.topK != 12 {
		t.Errorf("topK = %d, want 12", cfg.topK)
	}
	if cfg.category != CategoryProduction {
		t.Errorf("category = %q, want %q", cfg.category, CategoryProduction)
	}
}
