// Package cmd provides the reelwise CLI commands.
//
// Commands:
//   - serve: HTTP API server (chat, conversations, knowledge base)
//   - ingest: index a directory of documents into the knowledge base
//   - seed: index the built-in starter documents
//   - version: build and configuration information
//
// Signal handling and graceful shutdown are implemented for all
// long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/reelwise/reelwise/internal/log"
)

// Execute is the main entry point for the reelwise CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "ingest":
		return runIngest(logger)
	case "seed":
		return runSeed(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("reelwise - movie industry knowledge chatbot")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  reelwise serve [addr]   Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  reelwise ingest <dir>   Index a directory of .txt/.md/.html documents")
	fmt.Println("  reelwise seed           Index the built-in starter documents")
	fmt.Println("  reelwise --version      Show version information")
	fmt.Println("  reelwise --help         Show this help")
	fmt.Println()
	fmt.Println("API endpoints (serve mode):")
	fmt.Println("  POST /api/v1/chat                Ask a movie production question")
	fmt.Println("  GET  /api/v1/conversations       List conversations")
	fmt.Println("  GET  /api/v1/knowledge           List knowledge documents")
	fmt.Println("  GET  /api/v1/knowledge/search    Semantic search")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY            Required with the gemini provider")
	fmt.Println("  OPENAI_API_KEY            Required with the openai provider")
	fmt.Println("  REELWISE_PROVIDER         AI provider: gemini (default), ollama, openai")
	fmt.Println("  REELWISE_KNOWLEDGE_BACKEND  Index backend: chromem (default), postgres")
	fmt.Println("  DATABASE_URL              PostgreSQL URL (postgres backend)")
	fmt.Println("  DEBUG                     Enable debug logging")
}
