package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port               string
	CallbackPort       string
	AgentAPIKeys       map[string]struct{}
	OpenAIAPIKey       string
	OpenAIModel        string
	UseRealAPI         bool
	TikTokAppID        string
	TikTokSecret       string
	TikTokAdvertiserID string
	TikTokRedirectURI  string
	TokenFile          string
	StateFile          string
	MockFailureRate    float64
	CORSAllowedOrigins string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return strings.EqualFold(v, "true") || v == "1"
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func parseCSVSet(v string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(v, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

func Load() (Config, error) {
	cfg := Config{
		Port:               strings.TrimSpace(getenv("PORT", "8091")),
		CallbackPort:       strings.TrimSpace(getenv("CALLBACK_PORT", "8000")),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:        strings.TrimSpace(getenv("OPENAI_MODEL", "gpt-4o-mini")),
		UseRealAPI:         envBool("USE_REAL_TIKTOK_API"),
		TikTokAppID:        strings.TrimSpace(os.Getenv("TIKTOK_APP_ID")),
		TikTokSecret:       strings.TrimSpace(os.Getenv("TIKTOK_SECRET")),
		TikTokAdvertiserID: strings.TrimSpace(os.Getenv("TIKTOK_ADVERTISER_ID")),
		TikTokRedirectURI:  strings.TrimSpace(getenv("TIKTOK_REDIRECT_URI", "http://localhost:8000/callback")),
		TokenFile:          strings.TrimSpace(getenv("TOKEN_FILE", "tiktok_token.json")),
		StateFile:          strings.TrimSpace(getenv("OAUTH_STATE_FILE", "oauth_state.json")),
		MockFailureRate:    envFloat("MOCK_FAILURE_RATE", 0.1),
		CORSAllowedOrigins: strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	keysRaw := strings.TrimSpace(getenv("AGENT_API_KEYS", getenv("AGENT_API_KEY", "")))
	cfg.AgentAPIKeys = parseCSVSet(keysRaw)

	if cfg.OpenAIAPIKey == "" {
		return Config{}, errors.New("missing OPENAI_API_KEY")
	}
	if len(cfg.AgentAPIKeys) == 0 {
		return Config{}, errors.New("missing AGENT_API_KEY (or AGENT_API_KEYS)")
	}
	if cfg.Port == "" {
		return Config{}, errors.New("missing PORT")
	}
	if cfg.UseRealAPI {
		if cfg.TikTokAppID == "" || cfg.TikTokSecret == "" {
			return Config{}, errors.New("USE_REAL_TIKTOK_API requires TIKTOK_APP_ID and TIKTOK_SECRET")
		}
		if cfg.TikTokAdvertiserID == "" {
			return Config{}, errors.New("USE_REAL_TIKTOK_API requires TIKTOK_ADVERTISER_ID")
		}
	}
	if cfg.MockFailureRate < 0 || cfg.MockFailureRate > 1 {
		return Config{}, errors.New("MOCK_FAILURE_RATE must be between 0 and 1")
	}

	return cfg, nil
}
