package chat

import "testing"

func TestOnTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question string
		want     bool
	}{
		{"How do I budget a short film?", true},
		{"What does a director of photography do?", true},
		{"Explain color grading in post-production", true},
		{"what is the box office record for 2025?", true},
		{"CASTING decisions for the lead role", true},
		{"What is the best recipe for banana bread?", false},
		{"Tell me about quantum computing", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := onTopic(tt.question); got != tt.want {
				t.Errorf("onTopic(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}
