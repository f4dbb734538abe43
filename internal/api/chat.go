package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/reelwise/reelwise/internal/chat"
	"github.com/reelwise/reelwise/internal/log"
	"github.com/reelwise/reelwise/internal/websearch"
)

// maxChatBodyBytes bounds the chat request body size.
const maxChatBodyBytes = 64 * 1024

// chatHandler serves POST /api/v1/chat.
type chatHandler struct {
	pipeline    *chat.Pipeline
	defaultTopK int
	logger      log.Logger
}

// chatRequest is the JSON body of a chat turn.
// TopK is a pointer so an absent field falls back to the server default
// while an explicit 0 disables retrieval.
type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	TopK           *int   `json:"top_k,omitempty"`
	Category       string `json:"category,omitempty"`
}

// chatResponse is the JSON body of a completed turn.
type chatResponse struct {
	Answer         string             `json:"answer"`
	ConversationID string             `json:"conversation_id"`
	Sources        []chat.Source      `json:"sources"`
	Citations      []string           `json:"citations,omitempty"`
	WebSources     []websearch.Result `json:"web_sources,omitempty"`
	Validation     *chat.Validation   `json:"validation,omitempty"`
	ResponseTimeMS int64              `json:"response_time_ms"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	resp, err := h.pipeline.HandleTurn(r.Context(), chat.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		TopK:           topK,
		Category:       req.Category,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []chat.Source{}
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:         resp.Answer,
		ConversationID: resp.ConversationID,
		Sources:        sources,
		Citations:      resp.Citations,
		WebSources:     resp.WebSources,
		Validation:     resp.Validation,
		ResponseTimeMS: resp.ResponseTime.Milliseconds(),
	}, h.logger)
}
