package api

import (
	"net/http"

	"github.com/reelwise/reelwise/internal/conversation"
	"github.com/reelwise/reelwise/internal/log"
)

// conversationHandler serves the /api/v1/conversations routes.
type conversationHandler struct {
	store  *conversation.Store
	logger log.Logger
}

type conversationListResponse struct {
	Conversations []conversation.Summary `json:"conversations"`
}

type conversationDetailResponse struct {
	ID    string              `json:"id"`
	Turns []conversation.Turn `json:"turns"`
}

func (h *conversationHandler) list(w http.ResponseWriter, _ *http.Request) {
	summaries := h.store.List()
	if summaries == nil {
		summaries = []conversation.Summary{}
	}
	writeJSON(w, http.StatusOK, conversationListResponse{Conversations: summaries}, h.logger)
}

func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns, err := h.store.Get(id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, conversationDetailResponse{ID: id, Turns: turns}, h.logger)
}

func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	h.logger.Debug("conversation deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Clear(id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	h.logger.Debug("conversation cleared", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "id": id}, h.logger)
}
