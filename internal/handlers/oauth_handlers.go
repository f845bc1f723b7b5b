package handlers

import (
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tiktok-ads-agent/internal/services"
)

// OAuthHandlers serves the out-of-band authorization redirect. It runs on its
// own listener and talks to the rest of the system only through the token
// file the exchanger persists.
type OAuthHandlers struct {
	Exchanger services.CredentialExchanger
	// LiveMode enables the anti-forgery state check; the mock flow has no
	// real authorize redirect to carry one.
	LiveMode bool
}

func (h *OAuthHandlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/callback", h.HandleCallback)
	return r
}

func (h *OAuthHandlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("auth_code"))
	if code == "" {
		code = strings.TrimSpace(q.Get("code"))
	}
	if code == "" {
		writeHTML(w, http.StatusBadRequest, "Authorization failed", "No authorization code was provided.")
		return
	}

	if h.LiveMode && !h.Exchanger.VerifyState(q.Get("state")) {
		writeHTML(w, http.StatusBadRequest, "Authorization failed", "Invalid state parameter. Please restart the connect flow.")
		return
	}

	if err := h.Exchanger.ExchangeCode(code); err != nil {
		log.Printf("oauth callback: exchange failed: %v", err)
		writeHTML(w, http.StatusBadGateway, "Authorization failed", err.Error())
		return
	}

	log.Printf("oauth callback: credential stored")
	writeHTML(w, http.StatusOK, "Connected!", "You can close this tab and return to the agent.")
}

func writeHTML(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>%s</p></body></html>",
		html.EscapeString(title), html.EscapeString(detail))
}
