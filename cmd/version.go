package cmd

import (
	"fmt"
	"os"

	"github.com/reelwise/reelwise/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// runVersion displays version and configuration information.
func runVersion() {
	fmt.Printf("reelwise %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Configuration: unavailable (%v)\n", err)
		return
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Provider: %s\n", cfg.Provider)
	fmt.Printf("  Model: %s\n", cfg.FullModelName())
	fmt.Printf("  Embedder: %s\n", cfg.EmbedderModel)
	fmt.Printf("  Knowledge backend: %s\n", cfg.KnowledgeBackend)
	fmt.Printf("  Top-K: %d\n", cfg.TopK)

	// Don't display key material, only whether it is configured.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fmt.Println("  GEMINI_API_KEY: configured")
	} else if cfg.Provider == config.ProviderGemini || cfg.Provider == "" {
		fmt.Println("  GEMINI_API_KEY: not set")
	}
}
