package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tiktok-ads-agent/internal/models"
	"tiktok-ads-agent/internal/services"
)

type ConversationHandlers struct {
	Chat     *services.ConversationService
	Platform services.PlatformAPI
}

func (h *ConversationHandlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	greeting := h.Chat.Reset(id)
	writeJSON(w, http.StatusOK, models.ConversationResponse{ConversationID: id, Greeting: greeting})
}

func (h *ConversationHandlers) ResetConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "conversation_id_required"})
		return
	}
	greeting := h.Chat.Reset(id)
	writeJSON(w, http.StatusOK, models.ChatResponse{Answer: greeting, ConversationID: id})
}

func (h *ConversationHandlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "conversation_id_required"})
		return
	}
	summary, cfg := h.Chat.Summary(id)
	writeJSON(w, http.StatusOK, models.ConfigResponse{Summary: summary, Config: cfg})
}

// Connect hands the front-end the authorization URL; the callback listener
// finishes the flow out of band.
func (h *ConversationHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	u, err := h.Platform.AuthURL()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "auth_url_failed", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auth_url": u})
}
