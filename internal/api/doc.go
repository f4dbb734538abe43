// Package api provides the JSON REST API server for reelwise.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health - returns {"status":"ok"}
//   - GET /ready  - pings the database when one is configured
//
// Chat:
//   - POST /api/v1/chat - run one retrieval-augmented turn
//
// Conversations:
//   - GET    /api/v1/conversations            - list conversation summaries
//   - GET    /api/v1/conversations/{id}       - get full turn history
//   - DELETE /api/v1/conversations/{id}       - delete a conversation
//   - POST   /api/v1/conversations/{id}/clear - drop turns, keep the conversation
//
// Knowledge base:
//   - GET    /api/v1/knowledge                     - list all documents
//   - GET    /api/v1/knowledge/category/{category} - list documents in a category
//   - POST   /api/v1/knowledge                     - add a document (JSON body)
//   - POST   /api/v1/knowledge/upload              - upload a document file
//   - DELETE /api/v1/knowledge/{id}                - delete a document
//   - GET    /api/v1/knowledge/search              - semantic search (q, top_k, category)
//   - GET    /api/v1/knowledge/stats               - document and chunk counts
//
// # Error Handling
//
// Errors use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// Domain errors map onto status codes: validation failures become 400,
// missing resources 404, model or retrieval outages 503, and exhausted
// rate limits 429.
package api
