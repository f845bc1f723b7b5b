package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tiktok-ads-agent/internal/config"
	"tiktok-ads-agent/internal/handlers"
)

func NewRouter(cfg config.Config, chat *handlers.ChatHandlers, conv *handlers.ConversationHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(handlers.WithRequestLogging())
	r.Use(handlers.WithCORS(cfg))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	auth := handlers.WithAPIKey(cfg)

	r.With(auth).Post("/conversations", conv.CreateConversation)
	r.With(auth).Post("/conversations/{id}/reset", conv.ResetConversation)
	r.With(auth).Get("/conversations/{id}/config", conv.GetConfig)
	r.With(auth).Get("/connect", conv.Connect)

	r.With(auth).Post("/chat", chat.HandleChat)

	return r
}
