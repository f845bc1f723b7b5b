package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tiktok-ads-agent/internal/config"
	"tiktok-ads-agent/internal/handlers"
	"tiktok-ads-agent/internal/routes"
	"tiktok-ads-agent/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	hc := &http.Client{Timeout: 30 * time.Second}

	var platform services.PlatformAPI
	var exchanger services.CredentialExchanger
	if cfg.UseRealAPI {
		live := services.NewLivePlatform(
			cfg.TikTokAppID, cfg.TikTokSecret, cfg.TikTokRedirectURI,
			cfg.TikTokAdvertiserID, cfg.TokenFile, cfg.StateFile, hc,
		)
		platform = live
		exchanger = live
		log.Printf("using live TikTok API (advertiser_id=%s)", cfg.TikTokAdvertiserID)
	} else {
		mock := services.NewMockPlatform(cfg.MockFailureRate > 0, cfg.MockFailureRate, nil)
		platform = mock
		exchanger = mock
		log.Printf("using mock TikTok API (failure_rate=%.2f)", cfg.MockFailureRate)
	}

	openai := &services.OpenAIClient{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, HTTP: hc}
	collaborator := &services.OpenAICollaborator{Client: openai}
	chatSvc := services.NewConversationService(platform, collaborator)

	chatHandlers := &handlers.ChatHandlers{Chat: chatSvc}
	convHandlers := &handlers.ConversationHandlers{Chat: chatSvc, Platform: platform}
	oauthHandlers := &handlers.OAuthHandlers{Exchanger: exchanger, LiveMode: cfg.UseRealAPI}

	// The callback listener runs on its own port; it shares nothing with the
	// conversation loop beyond the token file the exchanger writes.
	callbackAddr := ":" + cfg.CallbackPort
	go func() {
		log.Printf("oauth callback listening on %s", callbackAddr)
		if err := http.ListenAndServe(callbackAddr, oauthHandlers.Router()); err != nil {
			log.Printf("oauth callback listener stopped: %v", err)
		}
	}()

	h := routes.NewRouter(cfg, chatHandlers, convHandlers)

	addr := ":" + cfg.Port
	log.Printf("tiktok-ads-agent listening on %s (model=%s)", addr, cfg.OpenAIModel)
	if err := http.ListenAndServe(addr, h); err != nil {
		panic(err)
	}
}
