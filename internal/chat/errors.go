package chat

import "errors"

// Sentinel errors for pipeline operations.
// These errors are part of the Pipeline's public API and should be checked
// using errors.Is().
//
// Example:
//
//	resp, err := pipeline.HandleTurn(ctx, req)
//	if errors.Is(err, chat.ErrValidation) {
//	    // Reject as a client error
//	}
var (
	// ErrValidation indicates the request is malformed. Validation runs
	// before any external call is made.
	ErrValidation = errors.New("invalid request")

	// ErrUpstream indicates an embedding, vector store, or LLM call failed
	// after bounded retries.
	ErrUpstream = errors.New("upstream service failed")
)
