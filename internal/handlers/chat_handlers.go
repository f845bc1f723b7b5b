package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tiktok-ads-agent/internal/models"
	"tiktok-ads-agent/internal/services"
)

type ChatHandlers struct {
	Chat *services.ConversationService
}

func (h *ChatHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_json"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "message_required"})
		return
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	answer, err := h.Chat.Process(r.Context(), conversationID, strings.TrimSpace(req.Message))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "chat_failed", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Answer: answer, ConversationID: conversationID})
}
