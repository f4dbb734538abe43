package api

import (
	"errors"
	"net/http"

	"github.com/reelwise/reelwise/internal/chat"
	"github.com/reelwise/reelwise/internal/conversation"
	"github.com/reelwise/reelwise/internal/ingest"
	"github.com/reelwise/reelwise/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Pipeline      *chat.Pipeline      // Required
	Conversations *conversation.Store // Required
	Knowledge     KnowledgeStore      // Required
	Ingestor      *ingest.Ingestor    // Required: backs POST /knowledge and /knowledge/upload
	Pinger        Pinger              // Optional: nil makes /ready unconditional
	CORSOrigins   []string            // Allowed origins for CORS
	TrustProxy    bool                // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst     int                 // Rate limiter burst size per IP (0 = default 60)
	DefaultTopK   int                 // Retrieval breadth when the request omits top_k (0 = default 3)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("chat pipeline is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Knowledge == nil {
		return nil, errors.New("knowledge store is required")
	}
	if cfg.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	defaultTopK := cfg.DefaultTopK
	if defaultTopK <= 0 {
		defaultTopK = 3
	}

	ch := &chatHandler{
		pipeline:    cfg.Pipeline,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
	cv := &conversationHandler{
		store:  cfg.Conversations,
		logger: logger,
	}
	kn := &knowledgeHandler{
		store:       cfg.Knowledge,
		ingestor:    cfg.Ingestor,
		defaultTopK: defaultTopK,
		logger:      logger,
	}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/v1/chat", ch.send)

	// Conversation CRUD
	mux.HandleFunc("GET /api/v1/conversations", cv.list)
	mux.HandleFunc("GET /api/v1/conversations/{id}", cv.get)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", cv.delete)
	mux.HandleFunc("POST /api/v1/conversations/{id}/clear", cv.clear)

	// Knowledge base
	mux.HandleFunc("GET /api/v1/knowledge", kn.list)
	mux.HandleFunc("GET /api/v1/knowledge/category/{category}", kn.listByCategory)
	mux.HandleFunc("POST /api/v1/knowledge", kn.add)
	mux.HandleFunc("POST /api/v1/knowledge/upload", kn.upload)
	mux.HandleFunc("DELETE /api/v1/knowledge/{id}", kn.delete)
	mux.HandleFunc("GET /api/v1/knowledge/search", kn.search)
	mux.HandleFunc("GET /api/v1/knowledge/stats", kn.stats)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must be before RateLimit so preflight OPTIONS
	// gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pinger, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
